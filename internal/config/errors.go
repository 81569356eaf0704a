package config

import "codeberg.org/mutker/mcslog/internal/errors"

const (
	ErrNoInputs           = errors.ErrorCode("config_no_inputs")
	ErrInvalidColumns     = errors.ErrorCode("config_invalid_columns")
	ErrInvalidLocation    = errors.ErrorCode("config_invalid_location")
	ErrInvalidMaxRepeat   = errors.ErrorCode("config_invalid_max_repeat")
	ErrInvalidWorkers     = errors.ErrorCode("config_invalid_workers")
	ErrInvalidBatchSize   = errors.ErrorCode("config_invalid_batch_size")
	ErrInvalidCompression = errors.ErrorCode("config_invalid_parquet_compression")
	ErrStdoutConcurrency  = errors.ErrorCode("config_stdout_requires_single_worker")
)

// FieldError is the payload of a validation error.
type FieldError struct {
	Field string
	Value any
}
