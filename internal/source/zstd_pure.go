//go:build !cgo

package source

import (
	"io"

	"codeberg.org/mutker/mcslog/internal/errors"
	"github.com/klauspost/compress/zstd"
)

func newZstdReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1), // logs are read strictly in order
	)
	if err != nil {
		return nil, errors.New().Wrap(ErrDecoderInit, err)
	}

	return dec.IOReadCloser(), nil
}
