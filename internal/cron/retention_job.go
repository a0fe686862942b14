package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// PurgeFunc deletes rows older than cutoff and reports how many went.
type PurgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// RetentionTarget is one table swept by the retention job.
type RetentionTarget struct {
	Name   string
	MaxAge time.Duration
	Purge  PurgeFunc
}

type RetentionJobParams struct {
	Logger  *logger.Logger
	Targets []RetentionTarget
}

type retentionJob struct {
	logg    *logger.Logger
	targets []RetentionTarget
	now     func() time.Time
}

// NewRetentionJob sweeps every target in turn. A failing target does not
// stop the others; their errors are combined.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if len(params.Targets) == 0 {
		return nil, errors.New("at least one retention target required")
	}
	for _, target := range params.Targets {
		if target.Name == "" || target.Purge == nil {
			return nil, fmt.Errorf("retention target %q incomplete", target.Name)
		}
		if target.MaxAge <= 0 {
			return nil, fmt.Errorf("retention target %s: max age must be positive", target.Name)
		}
	}
	return &retentionJob{logg: params.Logger, targets: params.Targets, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return "retention" }

func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var result error
	for _, target := range j.targets {
		cutoff := now.Add(-target.MaxAge)
		deleted, err := target.Purge(ctx, cutoff)
		if err != nil {
			result = multierr.Append(result, fmt.Errorf("%s: %w", target.Name, err))
			continue
		}
		if deleted == 0 {
			continue
		}
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"target":       target.Name,
			"cutoff":       cutoff,
			"rows_deleted": deleted,
		}), "retention.purged")
	}
	return result
}
