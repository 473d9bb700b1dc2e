// Package metrics records stats samples to a local SQLite database.
package metrics

import (
	"context"
	"sync"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/logger"
	"github.com/google/uuid"
)

type service struct {
	repo  Repository
	cfg   Config
	runID string

	// mu serializes Record against Close
	mu     sync.Mutex
	closed bool
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Nop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op collector
	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create metrics repository")
		return nil, err
	}

	runID := uuid.NewString()

	log.Debug().
		Str("db_path", cfg.DBPath).
		Str("run_id", runID).
		Msg("Metrics service initialized")

	return &service{
		repo:  repo,
		cfg:   cfg,
		runID: runID,
	}, nil
}

func (s *service) Record(ctx context.Context, sample *Sample) error {
	errFactory := errors.New()

	if sample == nil || sample.Timestamp.IsZero() {
		return errFactory.New(ErrInvalidSample)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errFactory.New(ErrCollectorClosed)
	}

	stored := *sample
	stored.RunID = s.runID
	if err := s.repo.Record(&stored); err != nil {
		return errFactory.Wrap(ErrMetricsCollection, err)
	}

	return nil
}

func (s *service) Close() error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}

func (s *service) RunID() string {
	return s.runID
}

func (*noopCollector) Record(_ context.Context, _ *Sample) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}

func (*noopCollector) RunID() string {
	return ""
}
