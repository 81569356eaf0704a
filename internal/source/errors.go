package source

import "codeberg.org/mutker/mcslog/internal/errors"

const (
	ErrOpenSource        = errors.ErrOpenSource
	ErrUnsupportedFormat = errors.ErrUnsupportedFormat
	ErrDecoderInit       = errors.ErrorCode("source_decoder_init_failed")
	ErrCloseSource       = errors.ErrorCode("source_close_failed")
)
