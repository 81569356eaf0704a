// Package pipeline expands run-length compressed logs and fans the records
// out to the configured sinks, one reader per log.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/logger"
	"codeberg.org/mutker/mcslog/internal/rlecsv"
	"codeberg.org/mutker/mcslog/internal/sample"
	"codeberg.org/mutker/mcslog/internal/source"
	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 5000

type Options struct {
	Cols             int
	Columns          []string
	Location         *time.Location
	FallbackInterval time.Duration
	MaxRepeat        int

	Sinks     []SinkFactory
	Workers   int
	BatchSize int
	Log       logger.Logger
}

// Stats summarizes the processing of one log.
type Stats struct {
	Source  string
	Reader  rlecsv.Stats
	Records int
	Samples int
	Elapsed time.Duration
}

type Pipeline struct {
	opts Options
	log  logger.Logger
	errs errors.Factory
}

func New(opts Options) *Pipeline {
	if opts.BatchSize < 1 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	log := opts.Log
	if log == nil {
		log = logger.Default()
	}

	return &Pipeline{
		opts: opts,
		log:  log,
		errs: errors.New(),
	}
}

// Run processes paths concurrently, at most Workers at a time. The first
// failure cancels the logs still in progress; the stats of every log are
// returned in the order of paths.
func (p *Pipeline) Run(ctx context.Context, paths []string) ([]Stats, error) {
	results := make([]Stats, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, path := range paths {
		g.Go(func() error {
			stats, err := p.Process(ctx, path)
			results[i] = stats

			return err
		})
	}

	err := g.Wait()

	var total Stats
	for _, s := range results {
		total.Records += s.Records
		total.Reader.Reconstructed += s.Reader.Reconstructed
		total.Reader.Unbounded += s.Reader.Unbounded
	}
	p.log.Info().
		Int("files", len(paths)).
		Int("records", total.Records).
		Int("reconstructed", total.Reader.Reconstructed).
		Int("truncated_runs", total.Reader.Unbounded).
		Msg("Run finished")

	return results, err
}

// Process expands one log into every sink. Cancelling ctx stops the scan at
// the next record.
func (p *Pipeline) Process(ctx context.Context, path string) (Stats, error) {
	name := filepath.Base(path)
	stats := Stats{Source: name}
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return stats, p.errs.Wrap(ErrCanceled, err).WithData(path)
	}

	rc, err := source.Open(path)
	if err != nil {
		return stats, p.errs.Wrap(ErrProcessFile, err).WithData(path)
	}
	defer rc.Close()

	reader, err := rlecsv.NewReader(rc, p.opts.Cols,
		rlecsv.WithLocation(p.opts.Location),
		rlecsv.WithFallbackInterval(p.opts.FallbackInterval),
		rlecsv.WithMaxRepeat(p.opts.MaxRepeat),
		rlecsv.WithLogger(p.log),
	)
	if err != nil {
		return stats, p.errs.Wrap(ErrProcessFile, err).WithData(path)
	}

	sinks, err := p.openSinks(path, reader.Header())
	if err != nil {
		return stats, p.errs.Wrap(ErrProcessFile, err).WithData(path)
	}

	err = p.stream(ctx, name, reader, sinks, &stats)
	if cerr := closeSinks(sinks); err == nil && cerr != nil {
		err = cerr
	}

	stats.Reader = reader.Stats()
	stats.Elapsed = time.Since(start)

	if err != nil {
		if !errors.HasCode(err, ErrCanceled) {
			err = p.errs.Wrap(ErrProcessFile, err).WithData(path)
		}

		return stats, err
	}

	p.log.Info().
		Str("source", name).
		Int("rows", stats.Reader.Rows).
		Int("records", stats.Records).
		Int("reconstructed", stats.Reader.Reconstructed).
		Dur("elapsed", stats.Elapsed).
		Msg("Processed log")

	return stats, nil
}

func (p *Pipeline) stream(ctx context.Context, name string, reader *rlecsv.Reader, sinks []Sink, stats *Stats) error {
	cols := sample.NewColumns(p.opts.Columns, p.opts.Cols)
	batch := &Batch{
		Source:  name,
		Records: make([]rlecsv.Record, 0, p.opts.BatchSize),
	}

	for rec, err := range reader.All() {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return p.errs.Wrap(ErrCanceled, err)
		}

		batch.Records = append(batch.Records, rec)
		batch.Samples = sample.FromRecord(batch.Samples, name, cols, rec)
		if len(batch.Records) >= p.opts.BatchSize {
			if err := p.flush(ctx, sinks, batch, stats); err != nil {
				return err
			}
		}
	}

	return p.flush(ctx, sinks, batch, stats)
}

func (p *Pipeline) flush(ctx context.Context, sinks []Sink, batch *Batch, stats *Stats) error {
	if len(batch.Records) == 0 {
		return nil
	}

	for _, s := range sinks {
		if err := s.Write(ctx, batch); err != nil {
			return err
		}
	}

	stats.Records += len(batch.Records)
	stats.Samples += len(batch.Samples)
	batch.Records = batch.Records[:0]
	batch.Samples = batch.Samples[:0]

	return nil
}

func (p *Pipeline) openSinks(path string, header []string) ([]Sink, error) {
	sinks := make([]Sink, 0, len(p.opts.Sinks))
	for _, open := range p.opts.Sinks {
		s, err := open(path, header)
		if err != nil {
			if cerr := closeSinks(sinks); cerr != nil {
				p.log.Warn().Err(cerr).Str("source", path).Msg("Failed to close sinks")
			}

			return nil, p.errs.Wrap(ErrOpenSink, err)
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

func closeSinks(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
