// Package interval generates evenly spaced timestamps and keeps the running
// estimate of sample spacing used when a run has no known end.
package interval

// Estimator turns observed sample intervals into a spacing estimate.
// Values are in seconds.
type Estimator interface {
	Add(x float64)
	Average() float64
	Count() int
}

// Mean is a cumulative moving average. It keeps no history, so the estimate
// is approximate by nature: it only reflects intervals seen so far in the scan.
type Mean struct {
	n   int
	avg float64
}

var _ Estimator = (*Mean)(nil)

// Add folds x into the running mean.
func (m *Mean) Add(x float64) {
	m.avg += (x - m.avg) / float64(m.n+1)
	m.n++
}

// Average returns the mean of all observed values, or 0 before the first one.
func (m *Mean) Average() float64 {
	return m.avg
}

// Count returns the number of observed values.
func (m *Mean) Count() int {
	return m.n
}
