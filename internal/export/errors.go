package export

import "codeberg.org/mutker/mcslog/internal/errors"

const (
	ErrCreateFile   = errors.ErrorCode("export_create_file_failed")
	ErrWriteRows    = errors.ErrWriteOutput
	ErrCloseWriter  = errors.ErrCloseOutput
	ErrWriterClosed = errors.ErrorCode("export_writer_closed")
	ErrReadFile     = errors.ErrorCode("export_read_file_failed")
)
