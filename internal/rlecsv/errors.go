package rlecsv

import (
	"fmt"

	"codeberg.org/mutker/mcslog/internal/errors"
)

const (
	ErrMalformedTimestamp = errors.ErrMalformedTimestamp
	ErrCorruptData        = errors.ErrCorruptData
	ErrReadSource         = errors.ErrReadSource
	ErrInvalidColumns     = errors.ErrorCode("rlecsv_invalid_columns")
	ErrWriteRecord        = errors.ErrorCode("rlecsv_write_record_failed")
)

// RowError is the payload of MalformedTimestamp and CorruptData errors.
type RowError struct {
	Line      int
	Timestamp string
	Reason    string
}

func (e RowError) String() string {
	if e.Reason == "" {
		return fmt.Sprintf("line %d at %s", e.Line, e.Timestamp)
	}

	return fmt.Sprintf("line %d at %s: %s", e.Line, e.Timestamp, e.Reason)
}

// RowErrorOf extracts the row payload from a reader error.
func RowErrorOf(err error) (RowError, bool) {
	var e errors.Error
	if !errors.As(err, &e) {
		return RowError{}, false
	}
	row, ok := e.GetData().(RowError)

	return row, ok
}
