// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	iu "github.com/choria-io/fetch-resources/internal/util"
	"github.com/choria-io/fetch-resources/metrics"
	"github.com/choria-io/fetch-resources/model"
)

var _ model.Extractor = (*Extractor)(nil)

// Extractor unpacks compressed tar archives
type Extractor struct {
	log model.Logger
}

func New(log model.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract unpacks archive into target, creating target when needed. The archive is removed afterwards regardless of the outcome.
func (e *Extractor) Extract(ctx context.Context, archive string, target string) (err error) {
	log := e.log.With("archive", archive, "target", target)

	defer func() {
		rmErr := os.Remove(archive)
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Error("Could not remove archive", "error", rmErr)
			if err == nil {
				err = fmt.Errorf("%w: could not remove archive: %w", model.ErrIO, rmErr)
			}
			return
		}

		if err != nil {
			log.Warn("Removed archive after failed extraction", "error", err)
		}
	}()

	target, err = filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	if !iu.IsDirectory(target) {
		log.Info("Creating extraction target")
		err = os.MkdirAll(target, 0755)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrIO, err)
		}
	}

	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	format := FormatForName(archive)
	if format == "" {
		format = sniffFormat(br)
	}

	log.Info("Extracting archive", "format", format)

	stream, release, err := decompress(format, br)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrCorruptArchive, err)
	}
	defer release()

	entries, err := e.untar(ctx, stream, target)
	metrics.ExtractedEntries.WithLabelValues(filepath.Base(archive)).Add(float64(entries))
	if err != nil {
		return err
	}

	log.Info("Archive extracted", "entries", entries)

	return nil
}

func (e *Extractor) untar(ctx context.Context, stream io.Reader, target string) (int, error) {
	tr := tar.NewReader(stream)
	entries := 0

	for {
		if ctx.Err() != nil {
			return entries, fmt.Errorf("%w: extraction interrupted: %w", model.ErrIO, ctx.Err())
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return entries, fmt.Errorf("%w: %w", model.ErrCorruptArchive, err)
		}

		dest, err := entryPath(target, hdr.Name)
		if err != nil {
			return entries, err
		}

		mode := hdr.FileInfo().Mode().Perm()

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(dest, mode|0700)
			if err != nil {
				return entries, fmt.Errorf("%w: %w", model.ErrIO, err)
			}

		case tar.TypeReg:
			err = writeFile(tr, dest, mode)
			if err != nil {
				return entries, err
			}
			// best effort, modification times only make re-runs stable
			_ = os.Chtimes(dest, hdr.ModTime, hdr.ModTime)

		case tar.TypeSymlink:
			err = writeSymlink(target, dest, hdr.Linkname)
			if err != nil {
				return entries, err
			}

		case tar.TypeLink:
			src, err := entryPath(target, hdr.Linkname)
			if err != nil {
				return entries, err
			}
			err = writeHardlink(target, src, dest)
			if err != nil {
				return entries, err
			}

		default:
			e.log.Debug("Skipping unsupported archive entry", "name", hdr.Name, "type", string(hdr.Typeflag))
			continue
		}

		entries++
	}

	return entries, nil
}

// entryPath resolves name below target, entries escaping target are rejected
func entryPath(target string, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: entry %q has an absolute path", model.ErrCorruptArchive, name)
	}

	dest := filepath.Join(target, name)
	if !iu.IsWithin(target, dest) {
		return "", fmt.Errorf("%w: entry %q is outside the extraction target", model.ErrCorruptArchive, name)
	}

	err := checkParents(target, dest)
	if err != nil {
		return "", err
	}

	return dest, nil
}

// checkParents rejects dest when any existing directory between target and dest is a symlink, earlier entries could have pointed it anywhere
func checkParents(target string, dest string) error {
	rel, err := filepath.Rel(target, filepath.Dir(dest))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrCorruptArchive, err)
	}

	if rel == "." {
		return nil
	}

	current := target
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)

		stat, err := os.Lstat(current)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return fmt.Errorf("%w: %w", model.ErrIO, err)
		case stat.Mode()&fs.ModeSymlink != 0:
			rel, _ := filepath.Rel(target, current)
			return fmt.Errorf("%w: entry %q traverses symlink %q", model.ErrCorruptArchive, dest, rel)
		}
	}

	return nil
}

// prepare ensures the parent of dest exists and that nothing other than a directory remains at dest
func prepare(dest string) error {
	err := os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	stat, err := os.Lstat(dest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	case stat.IsDir():
		return fmt.Errorf("%w: %s exists and is a directory", model.ErrIO, dest)
	}

	err = os.Remove(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	return nil
}

func writeFile(r io.Reader, dest string, mode fs.FileMode) error {
	err := prepare(dest)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	body := &iu.ReadTracker{R: r}
	_, err = io.Copy(out, body)
	if err != nil {
		out.Close()
		if body.Err != nil {
			return fmt.Errorf("%w: %w", model.ErrCorruptArchive, body.Err)
		}
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	err = out.Close()
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	// umask may have masked the requested mode
	err = os.Chmod(dest, mode)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	return nil
}

func writeSymlink(target string, dest string, link string) error {
	if filepath.IsAbs(link) {
		return fmt.Errorf("%w: symlink %q points to absolute path %q", model.ErrCorruptArchive, dest, link)
	}

	if !iu.IsWithin(target, filepath.Join(filepath.Dir(dest), link)) {
		return fmt.Errorf("%w: symlink %q points outside the extraction target", model.ErrCorruptArchive, dest)
	}

	err := prepare(dest)
	if err != nil {
		return err
	}

	err = os.Symlink(link, dest)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	return nil
}

func writeHardlink(target string, src string, dest string) error {
	stat, err := os.Lstat(src)
	switch {
	case err != nil:
		return fmt.Errorf("%w: hardlink %q source %q: %w", model.ErrCorruptArchive, dest, src, err)
	case stat.Mode()&fs.ModeSymlink != 0:
		// a linked symlink resolves relative to its new location
		rel, _ := filepath.Rel(target, src)
		return fmt.Errorf("%w: hardlink %q points to symlink %q", model.ErrCorruptArchive, dest, rel)
	}

	err = prepare(dest)
	if err != nil {
		return err
	}

	err = os.Link(src, dest)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	return nil
}

// Place moves a downloaded file to target/name, creating target when needed. The downloaded file is removed on failure.
func (e *Extractor) Place(_ context.Context, path string, target string, name string) (err error) {
	log := e.log.With("file", path, "target", target)

	defer func() {
		if err != nil {
			rmErr := os.Remove(path)
			if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				log.Error("Could not remove download", "error", rmErr)
			}
		}
	}()

	err = os.MkdirAll(target, 0755)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	dest := filepath.Join(target, name)
	if same, _ := samePath(path, dest); same {
		log.Info("Placed resource", "dest", dest)
		return nil
	}

	err = prepare(dest)
	if err != nil {
		return err
	}

	err = os.Rename(path, dest)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIO, err)
	}

	log.Info("Placed resource", "dest", dest)

	return nil
}

func samePath(a string, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}

	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}

	return absA == absB, nil
}
