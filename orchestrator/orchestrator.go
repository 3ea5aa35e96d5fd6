// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"

	"github.com/choria-io/fetch-resources/metrics"
	"github.com/choria-io/fetch-resources/model"
)

// Orchestrator fetches and unpacks resources one after the other
type Orchestrator struct {
	fetcher   model.Fetcher
	extractor model.Extractor
	creds     *model.Credentials
	log       model.Logger
	out       model.Logger
}

// New creates an Orchestrator, creds may be nil when no resource requires authentication. Diagnostic messages go to log while the final status is written to out.
func New(fetcher model.Fetcher, extractor model.Extractor, creds *model.Credentials, log model.Logger, out model.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		creds:     creds,
		log:       log,
		out:       out,
	}
}

// Run processes descriptors in order and produces one result for each, failures do not stop the run
func (o *Orchestrator) Run(ctx context.Context, descriptors []model.ResourceDescriptor) *model.Summary {
	timer := prometheus.NewTimer(metrics.RunTime.WithLabelValues())
	start := time.Now()

	summary := model.NewSummary(ksuid.New().String(), len(descriptors))
	log := o.log.With("run", summary.RunID)

	log.Debug("Starting run", "resources", len(descriptors))

	for i := range descriptors {
		res := o.process(ctx, log, descriptors[i])
		metrics.ObserveResult(res)
		summary.Record(res)
	}

	summary.Duration = time.Since(start)
	timer.ObserveDuration()

	if summary.AllSucceeded {
		o.out.Info(summary.StatusLine())
	} else {
		o.out.Error(summary.StatusLine())
	}

	return summary
}

func (o *Orchestrator) process(ctx context.Context, log model.Logger, descriptor model.ResourceDescriptor) *model.FetchResult {
	start := time.Now()
	log = log.With("resource", descriptor.Name)

	err := o.fetchAndUnpack(ctx, &descriptor)
	res := model.NewFetchResult(descriptor, time.Since(start), err)

	if err != nil {
		log.Error("Resource failed", "kind", res.Kind, "error", err)
	} else {
		log.Info("Resource ready", "target", descriptor.Target, "duration", res.Duration.Round(time.Millisecond))
	}

	return res
}

func (o *Orchestrator) fetchAndUnpack(ctx context.Context, descriptor *model.ResourceDescriptor) error {
	err := descriptor.Validate()
	if err != nil {
		return err
	}

	path, err := o.fetcher.Fetch(ctx, descriptor, o.creds)
	if err != nil {
		return err
	}

	if descriptor.IsArchive() {
		return o.extractor.Extract(ctx, path, descriptor.Target)
	}

	return o.extractor.Place(ctx, path, descriptor.Target, descriptor.Archive)
}
