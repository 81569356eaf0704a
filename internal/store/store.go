// Package store keeps reconstructed samples in a SQLite database.
package store

import (
	"context"

	"codeberg.org/mutker/mcslog/internal/errors"
	"codeberg.org/mutker/mcslog/internal/logger"
	"codeberg.org/mutker/mcslog/internal/sample"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopStore struct{}

func NewService(cfg Config, log logger.Logger) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If the store is disabled, return a no-op store
	if !cfg.Enabled {
		log.Debug().Msg("Sample store disabled, using no-op store")
		return &noopStore{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return NewServiceWithRepository(repo, cfg), nil
}

// NewServiceWithRepository returns a Store backed by repo.
func NewServiceWithRepository(repo Repository, cfg Config) Store {
	return &service{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *service) Record(ctx context.Context, samples []sample.Sample) error {
	errFactory := errors.New()

	if len(samples) == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationCanceled, ctx.Err())
	default:
		if err := s.repo.Record(samples); err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}

func (*noopStore) Record(_ context.Context, _ []sample.Sample) error {
	return nil
}

func (*noopStore) Close() error {
	return nil
}
