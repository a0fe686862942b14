package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval is the tick. Zero means the shortest job cadence, or 15m.
	Interval time.Duration
	Now      func() time.Time
}

// Service ticks the registry. A cycle only runs on the instance that wins
// the lease, and each due job runs to completion before the next starts.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron: logger required")
	case params.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      params.Now,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = s.registry.Shortest()
	}
	if s.interval <= 0 {
		s.interval = 15 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run cycles immediately and then every interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every due job if this instance gets the lease. Job failures
// are recorded and never stop the cycle; only lease errors are returned.
func (s *Service) RunOnce(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !held {
		s.logg.Debug(ctx, "cron.lease_busy")
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "cron.lease_release_failed", err)
		}
	}()

	for _, job := range s.registry.Due(s.now()) {
		s.execute(ctx, job)
	}
	return nil
}

func (s *Service) execute(ctx context.Context, job Job) {
	name := job.Name()
	started := time.Now()
	err := guarded(s.logg.WithField(ctx, "job", name), job)
	elapsed := time.Since(started)

	s.metrics.ObserveDuration(name, elapsed)
	logCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "duration_ms": elapsed.Milliseconds()})
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(logCtx, "cron.job_failed", err)
		return
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(logCtx, "cron.job_done")
}

// guarded turns a panicking job into a failed run.
func guarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return job.Run(ctx)
}
