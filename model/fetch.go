// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
)

//go:generate mockgen -source=fetch.go -destination=modelmocks/fetch.go -package=modelmocks

// Credentials are the basic auth details sent to resources that require authentication
type Credentials struct {
	Username string
	Password string
}

// IsSet determines if a username was supplied
func (c *Credentials) IsSet() bool {
	return c != nil && c.Username != ""
}

// Fetcher retrieves a resource and returns the local path it was saved to
type Fetcher interface {
	Fetch(ctx context.Context, descriptor *ResourceDescriptor, creds *Credentials) (string, error)
}

// Extractor unpacks or places downloaded resources, the downloaded file is always consumed
type Extractor interface {
	Extract(ctx context.Context, archive string, target string) error
	Place(ctx context.Context, path string, target string, name string) error
}
