// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/choria-io/fetch-resources/templates"
)

// ResourceKind determines what happens to a resource once it is downloaded
type ResourceKind string

const (
	// KindArchive resources are unpacked into their target directory
	KindArchive ResourceKind = "archive"

	// KindFile resources are moved verbatim into their target directory
	KindFile ResourceKind = "file"
)

// ResourceDescriptor identifies one resource's source and where it should end up
type ResourceDescriptor struct {
	Name         string            `json:"name" yaml:"name"`                                       // Name is a short identifier used in logs and reports
	URL          string            `json:"url" yaml:"url"`                                         // URL is the http or https location of the resource
	RequiresAuth bool              `json:"requires_auth,omitempty" yaml:"requires_auth,omitempty"` // RequiresAuth sends basic auth credentials with the request
	Archive      string            `json:"archive" yaml:"archive"`                                 // Archive is the local file name the download is stored as
	Target       string            `json:"target" yaml:"target"`                                   // Target is the directory the resource is extracted or placed into
	Kind         ResourceKind      `json:"kind,omitempty" yaml:"kind,omitempty"`                   // Kind is archive or file, defaults to archive
	Checksum     string            `json:"checksum,omitempty" yaml:"checksum,omitempty"`           // Checksum is the expected hex encoded sha256 of the download
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`             // Headers are additional HTTP headers to send
}

// IsArchive determines if the resource should be extracted after download
func (d *ResourceDescriptor) IsArchive() bool {
	return d.Kind == "" || d.Kind == KindArchive
}

// Validate checks the descriptor is complete and usable
func (d *ResourceDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrResourceInvalid)
	}

	invalid := func(format string, a ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrResourceInvalid, d.Name, fmt.Sprintf(format, a...))
	}

	if d.URL == "" {
		return invalid("url cannot be empty")
	}

	uri, err := url.Parse(d.URL)
	if err != nil {
		return invalid("invalid url: %v", err)
	}

	if uri.Scheme != "http" && uri.Scheme != "https" {
		return invalid("url must use http or https")
	}

	if uri.Host == "" {
		return invalid("url must include a host")
	}

	if d.Archive == "" {
		return invalid("archive cannot be empty")
	}

	if d.Archive != filepath.Base(d.Archive) || d.Archive == "." || d.Archive == ".." || strings.ContainsAny(d.Archive, `/\`) {
		return invalid("archive must be a plain file name")
	}

	if d.Target == "" {
		return invalid("target cannot be empty")
	}

	if filepath.Clean(d.Target) != d.Target {
		return invalid("target path must be canonical")
	}

	switch d.Kind {
	case "", KindArchive, KindFile:
	default:
		return invalid("kind must be one of %q or %q", KindArchive, KindFile)
	}

	if d.Checksum != "" {
		sum, err := hex.DecodeString(d.Checksum)
		if err != nil || len(sum) != 32 {
			return invalid("checksum must be a hex encoded sha256 sum")
		}
	}

	return nil
}

// ResolveTemplates resolves {{ expression }} placeholders in the string properties
func (d *ResourceDescriptor) ResolveTemplates(env *templates.Env) error {
	for _, field := range []*string{&d.Name, &d.URL, &d.Archive, &d.Target, &d.Checksum} {
		val, err := templates.ResolveTemplateString(*field, env)
		if err != nil {
			return err
		}
		*field = val
	}

	for k, v := range d.Headers {
		val, err := templates.ResolveTemplateString(v, env)
		if err != nil {
			return err
		}
		d.Headers[k] = val
	}

	return nil
}
