package rlecsv

import (
	"bufio"
	"io"
	"strconv"

	"codeberg.org/mutker/mcslog/internal/errors"
)

// Writer renders records in the log format read by Reader, so an expanded
// log can be read back unchanged.
type Writer struct {
	w      *bufio.Writer
	header []string
	wrote  bool
	errs   errors.Factory
}

// NewWriter returns a Writer on w. The header lines are written before the
// first record; missing lines are left empty and extra lines are dropped.
func NewWriter(w io.Writer, header ...string) *Writer {
	lines := make([]string, HeaderLines)
	copy(lines, header)

	return &Writer{
		w:      bufio.NewWriter(w),
		header: lines,
		errs:   errors.New(),
	}
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	if !w.wrote {
		if err := w.WriteHeader(); err != nil {
			return err
		}
	}

	buf := make([]byte, 0, 32+16*len(rec.Values))
	buf = append(buf, FormatTimestamp(rec.Time)...)
	for _, v := range rec.Values {
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	for _, field := range rec.Extra {
		buf = append(buf, '\t')
		buf = append(buf, field...)
	}
	buf = append(buf, '\n')

	if _, err := w.w.Write(buf); err != nil {
		return w.errs.Wrap(ErrWriteRecord, err)
	}

	return nil
}

// WriteHeader writes the header lines if they have not been written yet.
func (w *Writer) WriteHeader() error {
	if w.wrote {
		return nil
	}
	w.wrote = true

	for _, line := range w.header {
		if _, err := w.w.WriteString(line + "\n"); err != nil {
			return w.errs.Wrap(ErrWriteRecord, err)
		}
	}

	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return w.errs.Wrap(ErrWriteRecord, err)
	}

	return nil
}
