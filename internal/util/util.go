// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func IsDirectory(path string) bool {
	stat, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if stat == nil {
		return false
	}

	return stat.IsDir()
}

// FileHasSuffix checks, case insensitively, if the base name of path ends in any of suffixes
func FileHasSuffix(path string, suffixes ...string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, strings.ToLower(suffix)) {
			return true
		}
	}

	return false
}

// RedactUrlCredentials returns uri as a string with any password replaced
func RedactUrlCredentials(uri *url.URL) string {
	if uri == nil {
		return ""
	}

	return uri.Redacted()
}

// IsWithin determines if path is parent or located below parent, both paths should be absolute and clean
func IsWithin(parent string, path string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ReadTracker wraps a reader and remembers the first non EOF error it produced, used to tell read failures from write failures after io.Copy
type ReadTracker struct {
	R   io.Reader
	N   int64
	Err error
}

func (t *ReadTracker) Read(p []byte) (int, error) {
	n, err := t.R.Read(p)
	t.N += int64(n)
	if err != nil && err != io.EOF && t.Err == nil {
		t.Err = err
	}

	return n, err
}

// DeepMergeMap merges source into a copy of target. Nested maps are merged, slices are concatenated and other values from source win.
func DeepMergeMap(target map[string]any, source map[string]any) map[string]any {
	result := cloneMap(target)

	for key, value := range source {
		switch existing := result[key].(type) {
		case map[string]any:
			incoming, ok := value.(map[string]any)
			if ok {
				result[key] = DeepMergeMap(existing, incoming)
				continue
			}
		case []any:
			incoming, ok := value.([]any)
			if ok {
				result[key] = append(cloneSlice(existing), incoming...)
				continue
			}
		}

		result[key] = cloneValue(value)
	}

	return result
}

func cloneMap(source map[string]any) map[string]any {
	result := make(map[string]any, len(source))
	for key, value := range source {
		result[key] = cloneValue(value)
	}

	return result
}

func cloneSlice(source []any) []any {
	result := make([]any, len(source))
	for i, value := range source {
		result[i] = cloneValue(value)
	}

	return result
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		return cloneSlice(typed)
	default:
		return typed
	}
}
