// Package sample flattens reconstructed records into per-column samples for
// the storage and export sinks.
package sample

import (
	"strconv"
	"time"

	"codeberg.org/mutker/mcslog/internal/rlecsv"
	"github.com/cespare/xxhash/v2"
)

// Column identifies one value column of a log.
type Column struct {
	ID   uint64
	Name string
}

// Sample is a single value of a single column at one instant.
type Sample struct {
	Source        string
	Column        Column
	Time          time.Time
	Value         float64
	Reconstructed bool
}

// ID computes the xxHash64 of a column name.
func ID(name string) uint64 {
	return xxhash.Sum64String(name)
}

// NewColumns returns n columns named after names. Missing names default to
// value_1, value_2 and so on.
func NewColumns(names []string, n int) []Column {
	cols := make([]Column, n)
	for i := range cols {
		name := "value_" + strconv.Itoa(i+1)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		cols[i] = Column{ID: ID(name), Name: name}
	}

	return cols
}

// FromRecord appends one sample per value of rec to dst.
func FromRecord(dst []Sample, source string, cols []Column, rec rlecsv.Record) []Sample {
	for i, v := range rec.Values {
		if i >= len(cols) {
			break
		}
		dst = append(dst, Sample{
			Source:        source,
			Column:        cols[i],
			Time:          rec.Time,
			Value:         v,
			Reconstructed: rec.Synthetic,
		})
	}

	return dst
}
