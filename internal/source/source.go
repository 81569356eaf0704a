// Package source opens telemetry logs, transparently decompressing archived
// logs based on their file extension.
package source

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/mcslog/internal/errors"
	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a log file is encoded on disk.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionS2
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	case CompressionLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// Detect returns the compression implied by the file name.
func Detect(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".s2", ".sz":
		return CompressionS2
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// Open opens path for reading, decompressing it when needed.
func Open(path string) (io.ReadCloser, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrOpenSource, err)
	}

	rc, err := NewReader(f, Detect(path))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &file{ReadCloser: rc, f: f}, nil
}

// NewReader wraps r in a decoder for c. Closing the result releases the
// decoder but not r.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		return newZstdReader(r)
	case CompressionS2:
		return io.NopCloser(s2.NewReader(r)), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}

	return nil, errors.New().WithData(ErrUnsupportedFormat, c)
}

// file closes both the decoder and the underlying file.
type file struct {
	io.ReadCloser
	f *os.File
}

func (f *file) Close() error {
	derr := f.ReadCloser.Close()
	if err := f.f.Close(); err != nil {
		return errors.New().Wrap(ErrCloseSource, err)
	}
	if derr != nil {
		return errors.New().Wrap(ErrCloseSource, derr)
	}

	return nil
}
