package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/export"
	"codeberg.org/mutker/mcslog/internal/rlecsv"
	"codeberg.org/mutker/mcslog/internal/sample"
	"codeberg.org/mutker/mcslog/internal/source"
	"codeberg.org/mutker/mcslog/internal/store"
)

// Batch is a run of consecutive records of one log, together with their
// per-column samples.
type Batch struct {
	Source  string
	Records []rlecsv.Record
	Samples []sample.Sample
}

// Sink consumes the batches of one log. A Batch is reused after Write
// returns.
type Sink interface {
	Write(ctx context.Context, b *Batch) error
	Close() error
}

// SinkFactory opens a Sink for the log at path. header holds the log's
// header lines.
type SinkFactory func(path string, header []string) (Sink, error)

// recordSink writes the expanded log in its original text format.
type recordSink struct {
	w      *rlecsv.Writer
	closer io.Closer
	unlock func()
}

func (s *recordSink) Write(_ context.Context, b *Batch) error {
	for _, rec := range b.Records {
		if err := s.w.Write(rec); err != nil {
			return err
		}
	}

	return nil
}

func (s *recordSink) Close() error {
	if s.unlock != nil {
		defer s.unlock()
	}

	err := s.w.WriteHeader()
	if err == nil {
		err = s.w.Flush()
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil && cerr != nil {
			err = errors.New().Wrap(ErrCloseSink, cerr)
		}
	}

	return err
}

// storeSink hands samples to a Store shared by every log.
type storeSink struct {
	st store.Store
}

func (s *storeSink) Write(ctx context.Context, b *Batch) error {
	return s.st.Record(ctx, b.Samples)
}

func (*storeSink) Close() error {
	return nil
}

// parquetSink writes one Parquet file per log.
type parquetSink struct {
	w *export.Writer
}

func (s *parquetSink) Write(_ context.Context, b *Batch) error {
	return s.w.Write(b.Samples)
}

func (s *parquetSink) Close() error {
	return s.w.Close()
}

// StdoutSink returns a factory writing every expanded log to w. Logs are
// written one at a time: a second log waits until the first sink is closed.
func StdoutSink(w io.Writer) SinkFactory {
	var mu sync.Mutex

	return func(_ string, header []string) (Sink, error) {
		mu.Lock()

		return &recordSink{
			w:      rlecsv.NewWriter(w, header...),
			unlock: mu.Unlock,
		}, nil
	}
}

// DirSink returns a factory writing each expanded log to dir under
// ExpandedName.
func DirSink(dir string) SinkFactory {
	return func(path string, header []string) (Sink, error) {
		errFactory := errors.New()

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errFactory.Wrap(ErrOpenSink, err).WithData(dir)
		}

		out := filepath.Join(dir, ExpandedName(path))
		f, err := os.Create(out)
		if err != nil {
			return nil, errFactory.Wrap(ErrOpenSink, err).WithData(out)
		}

		return &recordSink{
			w:      rlecsv.NewWriter(f, header...),
			closer: f,
		}, nil
	}
}

// StoreSink returns a factory recording samples into st. The store stays
// open when the sinks are closed.
func StoreSink(st store.Store) SinkFactory {
	return func(string, []string) (Sink, error) {
		return &storeSink{st: st}, nil
	}
}

// ParquetSink returns a factory exporting each log to dir under
// export.FileName.
func ParquetSink(dir string, opts export.Options) SinkFactory {
	return func(path string, _ []string) (Sink, error) {
		w, err := export.NewWriter(filepath.Join(dir, export.FileName(path)), opts)
		if err != nil {
			return nil, err
		}

		return &parquetSink{w: w}, nil
	}
}

// ExpandedName returns the file name of the expanded copy of a log:
// "az.log.zst" becomes "az.expanded.log".
func ExpandedName(path string) string {
	name := filepath.Base(path)
	if source.Detect(name) != source.CompressionNone {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	ext := filepath.Ext(name)
	if ext == name {
		ext = ""
	}

	return strings.TrimSuffix(name, ext) + ".expanded" + ext
}
