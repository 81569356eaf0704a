package interval

import "time"

// Observer receives the spacing computed for a series, in seconds.
type Observer interface {
	Add(x float64)
}

type seriesOptions struct {
	observer Observer
}

// SeriesOption configures Series.
type SeriesOption func(*seriesOptions)

// ObservedBy reports the computed spacing to o.
func ObservedBy(o Observer) SeriesOption {
	return func(so *seriesOptions) {
		so.observer = o
	}
}

// Series returns n instants evenly spaced over [start, end). The end instant
// is never part of the result. Arithmetic is done on integer microseconds:
// instant i is start + span*i/n, so long runs do not accumulate rounding
// drift.
func Series(start, end time.Time, n int, opts ...SeriesOption) []time.Time {
	if n <= 0 {
		return nil
	}

	var o seriesOptions
	for _, opt := range opts {
		opt(&o)
	}

	t0 := start.UnixMicro()
	span := end.UnixMicro() - t0
	if o.observer != nil {
		o.observer.Add(float64(span) / float64(n) / 1e6)
	}

	// span*i would overflow int64 for long spans, so split into quotient and
	// remainder: span*i/n == q*i + r*i/n with r < n.
	q, r := span/int64(n), span%int64(n)
	loc := start.Location()

	out := make([]time.Time, n)
	for i := range n {
		us := t0 + q*int64(i) + r*int64(i)/int64(n)
		out[i] = time.UnixMicro(us).In(loc)
	}

	return out
}
