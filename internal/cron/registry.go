package cron

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Job is one unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs with their own cadence. A job registered with every <= 0
// runs on every cycle.
type Registry struct {
	mu   sync.Mutex
	jobs []*scheduledJob
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds job; names must be unique since they key metrics and logs.
func (r *Registry) Register(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.job.Name() == job.Name() {
			return fmt.Errorf("job %q already registered", job.Name())
		}
	}
	r.jobs = append(r.jobs, &scheduledJob{job: job, every: every})
	return nil
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.jobs))
	for _, s := range r.jobs {
		jobs = append(jobs, s.job)
	}
	return jobs
}

// Due returns the jobs whose cadence has elapsed at now and stamps them as run.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := make([]Job, 0, len(r.jobs))
	for _, s := range r.jobs {
		if s.every > 0 && !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.every {
			continue
		}
		s.lastRun = now
		due = append(due, s.job)
	}
	return due
}

// Shortest is the smallest positive cadence, or 0 when no job sets one.
func (r *Registry) Shortest() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var shortest time.Duration
	for _, s := range r.jobs {
		if s.every > 0 && (shortest == 0 || s.every < shortest) {
			shortest = s.every
		}
	}
	return shortest
}
