//go:build cgo

package source

import (
	"io"

	"github.com/valyala/gozstd"
)

type zstdReader struct {
	*gozstd.Reader
}

func (z zstdReader) Close() error {
	z.Release()
	return nil
}

func newZstdReader(r io.Reader) (io.ReadCloser, error) {
	return zstdReader{gozstd.NewReader(r)}, nil
}
