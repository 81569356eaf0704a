package pipeline

import "codeberg.org/mutker/mcslog/internal/errors"

const (
	ErrProcessFile = errors.ErrProcessFile
	ErrCanceled    = errors.ErrCanceled
	ErrOpenSink    = errors.ErrorCode("pipeline_open_sink_failed")
	ErrWriteSink   = errors.ErrWriteOutput
	ErrCloseSink   = errors.ErrCloseOutput
)
