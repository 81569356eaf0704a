// Package export writes reconstructed samples to Parquet files.
package export

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/sample"
	"codeberg.org/mutker/mcslog/internal/source"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// Options configures the Parquet writer.
type Options struct {
	Compression CompressionType
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZstd,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) (CompressionType, bool) {
	switch strings.ToLower(s) {
	case "snappy":
		return CompressionSnappy, true
	case "zstd", "":
		return CompressionZstd, true
	case "lz4":
		return CompressionLZ4, true
	case "gzip":
		return CompressionGzip, true
	case "none":
		return CompressionNone, true
	}

	return CompressionZstd, false
}

func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// SampleRow is the Parquet layout of one sample.
type SampleRow struct {
	Source        string  `parquet:"source,dict"`
	SeriesID      int64   `parquet:"series_id"`
	Column        string  `parquet:"column,dict"`
	TimestampUs   int64   `parquet:"timestamp_us"`
	Value         float64 `parquet:"value"`
	Reconstructed bool    `parquet:"reconstructed"`
}

// SampleToRow converts a Sample to a SampleRow.
func SampleToRow(s *sample.Sample) SampleRow {
	return SampleRow{
		Source:        s.Source,
		SeriesID:      int64(s.Column.ID),
		Column:        s.Column.Name,
		TimestampUs:   s.Time.UnixMicro(),
		Value:         s.Value,
		Reconstructed: s.Reconstructed,
	}
}

// Writer writes samples to a Parquet file.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[SampleRow]
	rows     []SampleRow
	rowCount int64
	closed   bool
}

// NewWriter creates path, and its directory if needed, for writing.
func NewWriter(path string, opts Options) (*Writer, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errFactory.Wrap(ErrCreateFile, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrCreateFile, err)
	}

	writer := parquet.NewGenericWriter[SampleRow](f,
		parquet.Compression(getCompression(opts.Compression)),
	)

	return &Writer{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends samples to the file.
func (w *Writer) Write(samples []sample.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New().New(ErrWriterClosed)
	}

	w.rows = w.rows[:0]
	for i := range samples {
		w.rows = append(w.rows, SampleToRow(&samples[i]))
	}

	n, err := w.writer.Write(w.rows)
	if err != nil {
		return errors.New().Wrap(ErrWriteRows, err)
	}
	w.rowCount += int64(n)

	return nil
}

// Close flushes the footer and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return errors.New().Wrap(ErrCloseWriter, err)
	}
	if err := w.file.Close(); err != nil {
		return errors.New().Wrap(ErrCloseWriter, err)
	}

	return nil
}

// RowCount returns the number of rows written.
func (w *Writer) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.rowCount
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.path
}

// ReadFile returns every row stored in a Parquet file written by Writer.
func ReadFile(path string) ([]SampleRow, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFile, err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[SampleRow](f)
	defer reader.Close()

	rows := make([]SampleRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errFactory.Wrap(ErrReadFile, err)
	}

	return rows[:n], nil
}

// FileName returns the Parquet file name for a log path: the base name
// without its compression and log extensions.
func FileName(logPath string) string {
	name := filepath.Base(logPath)
	if source.Detect(name) != source.CompressionNone {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if ext := filepath.Ext(name); ext != name {
		name = strings.TrimSuffix(name, ext)
	}

	return name + ".parquet"
}
