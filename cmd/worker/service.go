package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type namedConsumer struct {
	name string
	run  consumer
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies map[string]pinger
	Consumers    map[string]consumer
}

// Service runs every configured consumer until one fails or ctx ends.
type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	consumers []namedConsumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	consumers := make([]namedConsumer, 0, len(params.Consumers))
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
		consumers = append(consumers, namedConsumer{name: name, run: c})
	}
	return &Service{logg: params.Logger, deps: params.Dependencies, consumers: consumers}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(s.consumers))
	for _, c := range s.consumers {
		go func(c namedConsumer) {
			consumerCtx := s.logg.WithField(runCtx, "consumer", c.name)
			s.logg.Info(consumerCtx, "consumer started")
			err := c.run.Run(consumerCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(consumerCtx, "consumer stopped unexpectedly", err)
				err = fmt.Errorf("%s: %w", c.name, err)
			}
			errCh <- err
		}(c)
	}

	var result error
	for range s.consumers {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) {
			result = multierr.Append(result, err)
		}
		// one consumer down stops the rest
		cancel()
	}
	if result != nil {
		return result
	}
	return ctx.Err()
}
