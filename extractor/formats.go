// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	iu "github.com/choria-io/fetch-resources/internal/util"
)

// Format is the compression applied to a tar stream
type Format string

const (
	FormatBzip2 Format = "bzip2"
	FormatGzip  Format = "gzip"
	FormatZstd  Format = "zstd"
	FormatTar   Format = "tar"
)

var (
	bzip2Magic = []byte("BZh")
	gzipMagic  = []byte{0x1f, 0x8b}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// FormatForName determines the format from the archive file name, returns an empty Format when unknown
func FormatForName(name string) Format {
	switch {
	case iu.FileHasSuffix(name, ".tar.bz2", ".tbz2", ".tbz", ".bz2"):
		return FormatBzip2
	case iu.FileHasSuffix(name, ".tar.gz", ".tgz", ".gz"):
		return FormatGzip
	case iu.FileHasSuffix(name, ".tar.zst", ".tzst", ".zst"):
		return FormatZstd
	case iu.FileHasSuffix(name, ".tar"):
		return FormatTar
	default:
		return ""
	}
}

// sniffFormat inspects the leading bytes of r, anything unrecognised is assumed to be a plain tar stream
func sniffFormat(r *bufio.Reader) Format {
	head, _ := r.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(head, bzip2Magic):
		return FormatBzip2
	case bytes.HasPrefix(head, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(head, zstdMagic):
		return FormatZstd
	default:
		return FormatTar
	}
}

// decompress wraps r according to format, the returned function releases decoder resources
func decompress(format Format, r io.Reader) (io.Reader, func(), error) {
	switch format {
	case FormatBzip2:
		return bzip2.NewReader(r), func() {}, nil

	case FormatGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { gz.Close() }, nil

	case FormatZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil

	default:
		return r, func() {}, nil
	}
}
