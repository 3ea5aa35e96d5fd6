// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"time"
)

// FetchResult is the outcome of fetching and unpacking a single resource
type FetchResult struct {
	Descriptor ResourceDescriptor `json:"descriptor" yaml:"descriptor"`
	Success    bool               `json:"success" yaml:"success"`
	Kind       ErrorKind          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration      `json:"duration" yaml:"duration"`

	Err error `json:"-" yaml:"-"`
}

// NewFetchResult creates a result for descriptor, err being nil indicates success
func NewFetchResult(descriptor ResourceDescriptor, duration time.Duration, err error) *FetchResult {
	res := &FetchResult{
		Descriptor: descriptor,
		Success:    err == nil,
		Duration:   duration,
		Err:        err,
		Kind:       KindOf(err),
	}

	if err != nil {
		res.Error = err.Error()
	}

	return res
}

// Summary aggregates the results of a run
type Summary struct {
	RunID        string         `json:"run_id" yaml:"run_id"`
	AllSucceeded bool           `json:"all_succeeded" yaml:"all_succeeded"`
	Results      []*FetchResult `json:"results" yaml:"results"`
	Duration     time.Duration  `json:"duration" yaml:"duration"`
}

// NewSummary creates an empty summary, with no results AllSucceeded is true
func NewSummary(runID string, capacity int) *Summary {
	return &Summary{
		RunID:        runID,
		AllSucceeded: true,
		Results:      make([]*FetchResult, 0, capacity),
	}
}

// Record adds a result to the summary
func (s *Summary) Record(res *FetchResult) {
	s.Results = append(s.Results, res)
	if !res.Success {
		s.AllSucceeded = false
	}
}

// Failed is the number of results that did not succeed
func (s *Summary) Failed() int {
	failed := 0
	for _, res := range s.Results {
		if !res.Success {
			failed++
		}
	}

	return failed
}

// StatusLine is the human readable outcome of the run
func (s *Summary) StatusLine() string {
	if s.AllSucceeded {
		return fmt.Sprintf("All %d resources fetched successfully", len(s.Results))
	}

	return fmt.Sprintf("%d of %d resources failed", s.Failed(), len(s.Results))
}
