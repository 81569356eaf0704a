// Package rlecsv reads tab-separated MCS telemetry logs whose repeated samples
// were run-length compressed, and expands the runs back into individual,
// evenly spaced records.
//
// A compressed row carries one extra trailing field such as "Repeat 25": the
// row stands for 25 identical samples, itself being the first. The samples
// between it and the next known row are re-created by interpolating
// timestamps. When the log ends inside a run, the spacing is estimated from
// the intervals observed earlier in the same file; those timestamps are an
// approximation.
package rlecsv

import (
	"bufio"
	"io"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/interval"
	"codeberg.org/mutker/mcslog/internal/logger"
)

const maxLineSize = 1 << 20

// DefaultMaxRepeat bounds the samples a single compressed row may stand for.
const DefaultMaxRepeat = 1_000_000

// Stats counts what a Reader has produced so far.
type Stats struct {
	Rows          int // data rows read from the source
	Runs          int // compressed rows seen
	Unbounded     int // runs closed by end of input
	Reconstructed int // records synthesized from runs
}

// Option configures a Reader.
type Option func(*Reader)

// WithLocation sets the time zone the log timestamps are recorded in.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(r *Reader) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithEstimator replaces the running mean used to space runs that are cut
// off by end of input.
func WithEstimator(e interval.Estimator) Option {
	return func(r *Reader) {
		if e != nil {
			r.est = e
		}
	}
}

// WithFallbackInterval sets the spacing used for a truncated run when no
// interval has been observed yet. With the default of zero such samples all
// share the run's start time.
func WithFallbackInterval(d time.Duration) Option {
	return func(r *Reader) {
		r.fallback = d
	}
}

// WithMaxRepeat sets the largest accepted repeat count. Larger counts are
// reported as corrupt data instead of being expanded. n < 1 keeps the
// default.
func WithMaxRepeat(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxRepeat = n
		}
	}
}

// WithLogger sets the logger used for run diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.log = l
		}
	}
}

// run is a compressed row whose end boundary is not known yet.
type run struct {
	start  time.Time
	values []float64
	extra  []string
	total  int
}

// row is a parsed line before classification.
type row struct {
	Record
	line  int
	stamp string
}

type rowKind int

const (
	rowComplete rowKind = iota
	rowCompressed
)

// Reader yields the records of one log scan. It is not safe for concurrent
// use and cannot be restarted.
type Reader struct {
	scanner   *bufio.Scanner
	cols      int
	loc       *time.Location
	est       interval.Estimator
	fallback  time.Duration
	maxRepeat int
	log       logger.Logger
	errs      errors.Factory

	header  []string
	line    int
	open    *run
	pending []Record // resolved records in chronological order
	head    int      // next pending record to emit
	err     error
	stats   Stats
}

// NewReader discards the header of src and returns a Reader over its data
// rows. cols is the number of numeric value columns, excluding the timestamp
// and any trailing tag.
func NewReader(src io.Reader, cols int, opts ...Option) (*Reader, error) {
	errs := errors.New()
	if cols < 0 {
		return nil, errs.WithData(ErrInvalidColumns, cols)
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	r := &Reader{
		scanner:   scanner,
		cols:      cols,
		loc:       time.UTC,
		est:       &interval.Mean{},
		maxRepeat: DefaultMaxRepeat,
		log:       logger.Default(),
		errs:      errs,
	}
	for _, opt := range opts {
		opt(r)
	}

	for range HeaderLines {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, errs.Wrap(ErrReadSource, err)
			}
			r.err = io.EOF

			break
		}
		r.header = append(r.header, scanner.Text())
		r.line++
	}

	return r, nil
}

// Header returns the header lines discarded at construction.
func (r *Reader) Header() []string {
	return r.header
}

// Stats returns the counters accumulated so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Next returns the next record in chronological order. It returns io.EOF
// once the log is exhausted. Any other error is final: the scan stops and
// every later call returns the same error.
func (r *Reader) Next() (Record, error) {
	if r.open != nil {
		if err := r.resolve(); err != nil {
			return Record{}, r.fail(err)
		}
	}

	if r.head < len(r.pending) {
		rec := r.pending[r.head]
		r.pending[r.head] = Record{}
		r.head++
		if r.head == len(r.pending) {
			r.pending = r.pending[:0]
			r.head = 0
		}

		return rec, nil
	}

	if r.err != nil {
		return Record{}, r.err
	}

	next, ok, err := r.readRow()
	if err != nil {
		return Record{}, r.fail(err)
	}
	if !ok {
		r.err = io.EOF
		return Record{}, io.EOF
	}

	kind, total, err := r.classify(&next)
	if err != nil {
		return Record{}, r.fail(err)
	}
	if kind == rowComplete {
		return next.Record, nil
	}

	// The compressed row is the first sample of its run and goes out at
	// once; the rest of the run is resolved on the following call.
	r.stats.Runs++
	r.open = &run{
		start:  next.Time,
		values: next.Values,
		extra:  next.Extra,
		total:  total,
	}

	return next.Record, nil
}

// All returns the remaining records as an iterator. Iteration stops after
// the first error, which is yielded with a zero Record.
func (r *Reader) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// resolve reads ahead until the open run, and any runs chained directly
// after it, have a known end. It is only called with nothing pending, and
// appends each resolved segment in chronological order.
func (r *Reader) resolve() error {
	cur := r.open
	r.open = nil

	for {
		next, ok, err := r.readRow()
		if err != nil {
			return err
		}
		if !ok {
			r.closeUnbounded(cur)
			return nil
		}

		kind, total, err := r.classify(&next)
		if err != nil {
			return err
		}

		if next.Time.Before(cur.start) {
			return r.errs.WithData(ErrCorruptData, RowError{
				Line:      next.line,
				Timestamp: next.stamp,
				Reason:    "timestamp precedes run start " + FormatTimestamp(cur.start),
			})
		}

		// The first instant is the run's own start, already emitted.
		stamps := interval.Series(cur.start, next.Time, cur.total, interval.ObservedBy(r.est))
		r.push(stamps[1:], cur, &next.Record)

		if kind == rowComplete {
			r.log.Debug().
				Int("line", next.line).
				Int("elements", cur.total).
				Int("pending", len(r.pending)).
				Msg("Resolved bounded run")

			return nil
		}

		r.stats.Runs++
		cur = &run{
			start:  next.Time,
			values: next.Values,
			extra:  next.Extra,
			total:  total,
		}
	}
}

// closeUnbounded spaces the rest of a run cut off by end of input using the
// estimated interval. The estimator is not updated from the guess.
func (r *Reader) closeUnbounded(cur *run) {
	r.stats.Unbounded++
	r.err = io.EOF

	step := r.est.Average()
	if r.est.Count() == 0 {
		step = r.fallback.Seconds()
		r.log.Warn().
			Dur("fallback", r.fallback).
			Int("elements", cur.total).
			Msg("No interval observed before truncated run, using fallback spacing")
	}

	end := cur.start.Add(time.Duration(step * float64(cur.total) * float64(time.Second)))
	stamps := interval.Series(cur.start, end, cur.total)
	if len(stamps) > 0 {
		stamps = stamps[1:]
	}
	r.push(stamps, cur, nil)

	r.log.Debug().
		Float64("interval", step).
		Int("elements", cur.total).
		Msg("Closed run truncated by end of input")
}

// push appends the records synthesized at stamps, followed by boundary, the
// known row ending the segment, when set.
func (r *Reader) push(stamps []time.Time, cur *run, boundary *Record) {
	r.pending = slices.Grow(r.pending, len(stamps)+1)
	for _, ts := range stamps {
		r.pending = append(r.pending, Record{
			Time:      ts,
			Values:    slices.Clone(cur.values),
			Extra:     slices.Clone(cur.extra),
			Synthetic: true,
		})
	}
	if boundary != nil {
		r.pending = append(r.pending, *boundary)
	}
	r.stats.Reconstructed += len(stamps)
}

func (r *Reader) fail(err error) error {
	r.err = err
	r.open = nil
	r.pending = nil
	r.head = 0

	return err
}

// readRow parses the next non-blank line. ok is false at end of input.
func (r *Reader) readRow() (row, bool, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}
		r.stats.Rows++

		return r.parse(text)
	}

	if err := r.scanner.Err(); err != nil {
		return row{}, false, r.errs.Wrap(ErrReadSource, err)
	}

	return row{}, false, nil
}

func (r *Reader) parse(text string) (row, bool, error) {
	fields := strings.Split(text, "\t")
	out := row{line: r.line, stamp: fields[0]}

	ts, err := ParseTimestamp(fields[0], r.loc)
	if err != nil {
		return row{}, false, r.errs.Wrap(ErrMalformedTimestamp, err).
			WithData(RowError{Line: r.line, Timestamp: fields[0]})
	}
	out.Time = ts

	last := min(len(fields), r.cols+1)
	out.Values = make([]float64, 0, last-1)
	for _, field := range fields[1:last] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return row{}, false, r.errs.Wrap(ErrCorruptData, err).
				WithData(RowError{Line: r.line, Timestamp: fields[0], Reason: "invalid value " + strconv.Quote(field)})
		}
		out.Values = append(out.Values, v)
	}
	if len(fields) > last {
		out.Extra = fields[last:]
	}

	return out, true, nil
}

// classify tells complete rows from compressed ones. A compressed row has
// its repeat tag stripped from Extra.
func (r *Reader) classify(next *row) (rowKind, int, error) {
	if len(next.Values) == r.cols && len(next.Extra) == 0 {
		return rowComplete, 0, nil
	}

	corrupt := RowError{Line: next.line, Timestamp: next.stamp, Reason: "unexpected field count"}
	if len(next.Values) < r.cols || len(next.Extra) == 0 {
		return 0, 0, r.errs.WithData(ErrCorruptData, corrupt)
	}

	tag := next.Extra[len(next.Extra)-1]
	total, ok, err := repeatCount(tag)
	switch {
	case !ok:
		return 0, 0, r.errs.WithData(ErrCorruptData, corrupt)
	case err != nil:
		corrupt.Reason = "invalid repeat tag " + strconv.Quote(tag)
		return 0, 0, r.errs.Wrap(ErrCorruptData, err).WithData(corrupt)
	case total < 1:
		corrupt.Reason = "invalid repeat count " + strconv.Itoa(total)
		return 0, 0, r.errs.WithData(ErrCorruptData, corrupt)
	case total > r.maxRepeat:
		corrupt.Reason = "repeat count " + strconv.Itoa(total) + " exceeds limit " + strconv.Itoa(r.maxRepeat)
		return 0, 0, r.errs.WithData(ErrCorruptData, corrupt)
	}

	next.Extra = next.Extra[:len(next.Extra)-1]
	if len(next.Extra) == 0 {
		next.Extra = nil
	}

	return rowCompressed, total, nil
}
