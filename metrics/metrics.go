// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/choria-io/fetch-resources/model"
)

var (
	NameSpace = "choria"
	Subsystem = "fetch_resources"

	// RunTime is a summary of the time taken to process all resources
	RunTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "run_duration_seconds"),
		Help: "Time taken to fetch and unpack all resources",
	}, []string{})

	// ResourceTime is a summary of the time taken to fetch and unpack a particular resource
	ResourceTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "resource_duration_seconds"),
		Help: "Time taken to fetch and unpack a particular resource",
	}, []string{"name"})

	// ResourceSucceeded counts how many resources were fetched successfully
	ResourceSucceeded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "resource_success_count"),
		Help: "How many resources were fetched successfully",
	}, []string{"name"})

	// ResourceFailed counts how many resources failed, by kind of failure
	ResourceFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "resource_failed_count"),
		Help: "How many resources failed",
	}, []string{"name", "kind"})

	// DownloadedBytes counts the bytes downloaded per resource
	DownloadedBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "downloaded_bytes"),
		Help: "How many bytes were downloaded",
	}, []string{"name"})

	// ExtractedEntries counts archive entries written to disk
	ExtractedEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "extracted_entries_count"),
		Help: "How many archive entries were extracted",
	}, []string{"archive"})

	// FactGatherTime is a summary of the time taken to gather host facts
	FactGatherTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "facts_gather_duration_seconds"),
		Help: "Time taken to gather host facts",
	}, []string{})

	registerOnce sync.Once
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RunTime)
		prometheus.MustRegister(ResourceTime)
		prometheus.MustRegister(ResourceSucceeded)
		prometheus.MustRegister(ResourceFailed)
		prometheus.MustRegister(DownloadedBytes)
		prometheus.MustRegister(ExtractedEntries)
		prometheus.MustRegister(FactGatherTime)
	})
}

// ObserveResult records the outcome of a single resource
func ObserveResult(res *model.FetchResult) {
	name := res.Descriptor.Name

	ResourceTime.WithLabelValues(name).Observe(res.Duration.Seconds())

	if res.Success {
		ResourceSucceeded.WithLabelValues(name).Inc()
	} else {
		ResourceFailed.WithLabelValues(name, string(res.Kind)).Inc()
	}
}

// WriteTextfile writes all registered metrics to file in the node exporter textfile format
func WriteTextfile(file string, log model.Logger) error {
	if file == "" {
		return nil
	}

	log.Debug("Writing metrics", "file", file)

	return prometheus.WriteToTextfile(file, prometheus.DefaultGatherer)
}
