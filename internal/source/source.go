// Package source opens triple files, decompressing .gz and .zst transparently.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies a file's encoding by extension.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

// CompressionOf returns the encoding implied by path's extension.
func CompressionOf(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	}
	return None
}

// Open returns a reader over the decoded content of path. Closing it
// closes the file and any decoder.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch CompressionOf(path) {
	case Gzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &stacked{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil
	case Zstd:
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		return &stacked{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			f.Close,
		}}, nil
	}
	return f, nil
}

// stacked closes a decoder and its file in order.
type stacked struct {
	io.Reader
	closers []func() error
}

func (s *stacked) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
