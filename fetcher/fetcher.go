// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	iu "github.com/choria-io/fetch-resources/internal/util"
	"github.com/choria-io/fetch-resources/metrics"
	"github.com/choria-io/fetch-resources/model"
)

var _ model.Fetcher = (*Fetcher)(nil)

// Fetcher downloads resources over HTTP(S) into a resources root directory
type Fetcher struct {
	root   string
	client *http.Client
	log    model.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithTimeout sets an overall timeout for each request, 0 means no timeout
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = timeout
	}
}

// WithHTTPClient uses client for all requests
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// New creates a Fetcher that saves downloads below root
func New(root string, log model.Logger, opts ...Option) (*Fetcher, error) {
	if root == "" {
		return nil, fmt.Errorf("resources root is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	f := &Fetcher{
		root:   abs,
		client: &http.Client{},
		log:    log,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Root is the directory downloads are saved in
func (f *Fetcher) Root() string {
	return f.root
}

// Fetch performs a single GET for descriptor and stores the body as root/Archive, the returned path is the saved file
func (f *Fetcher) Fetch(ctx context.Context, descriptor *model.ResourceDescriptor, creds *model.Credentials) (string, error) {
	log := f.log.With("resource", descriptor.Name)

	if descriptor.RequiresAuth && !creds.IsSet() {
		return "", fmt.Errorf("%w: %s requires credentials but none were supplied", model.ErrAuth, descriptor.Name)
	}

	uri, err := url.Parse(descriptor.URL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url: %w", model.ErrResourceInvalid, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrResourceInvalid, err)
	}

	for k, v := range descriptor.Headers {
		req.Header.Add(k, v)
	}

	if descriptor.RequiresAuth {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	log.Info("Downloading", "url", iu.RedactUrlCredentials(uri))

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s returned %s", model.ErrAuth, iu.RedactUrlCredentials(uri), resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: %s returned status %d: %s", model.ErrHTTP, iu.RedactUrlCredentials(uri), resp.StatusCode, resp.Status)
	}

	err = os.MkdirAll(f.root, 0755)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	tf, err := os.CreateTemp(f.root, fmt.Sprintf(".%s-*", descriptor.Archive))
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrIO, err)
	}
	defer os.Remove(tf.Name())

	hasher := sha256.New()
	body := &iu.ReadTracker{R: resp.Body}
	copied, err := io.Copy(io.MultiWriter(tf, hasher), body)
	if err != nil {
		tf.Close()
		if body.Err != nil {
			return "", fmt.Errorf("%w: reading response failed: %w", model.ErrNetwork, body.Err)
		}
		return "", fmt.Errorf("%w: could not write %s: %w", model.ErrIO, tf.Name(), err)
	}

	err = tf.Close()
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	metrics.DownloadedBytes.WithLabelValues(descriptor.Name).Add(float64(copied))
	log.Info("Resource downloaded", "size", humanize.IBytes(uint64(copied)))

	if descriptor.Checksum != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(sum, descriptor.Checksum) {
			return "", fmt.Errorf("%w: expected %q got %q", model.ErrChecksum, descriptor.Checksum, sum)
		}
	}

	dest := filepath.Join(f.root, descriptor.Archive)
	err = os.Rename(tf.Name(), dest)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	return dest, nil
}
