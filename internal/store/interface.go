package store

import (
	"context"

	"codeberg.org/mutker/mcslog/internal/sample"
)

// Store persists reconstructed samples.
type Store interface {
	Record(ctx context.Context, samples []sample.Sample) error
	Close() error
}

// Repository is the storage backend behind a Store.
type Repository interface {
	Record(samples []sample.Sample) error
	Flush() error
	Query(ctx context.Context, source string, seriesID uint64) ([]sample.Sample, error)
	Close() error
}
