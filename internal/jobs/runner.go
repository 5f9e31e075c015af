package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Func is one run of a job.
type Func func(ctx context.Context) error

// Job is a named function run on a fixed interval.
type Job struct {
	Type     string
	Interval time.Duration
	// Timeout bounds a single run; zero means the interval.
	Timeout time.Duration
	Run     Func
}

// Runner runs jobs until its context is cancelled.
type Runner struct {
	metrics *Metrics
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(metrics *Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{metrics: metrics, logger: logger}
}

// Start runs each job on its own goroutine, first after one interval.
// Jobs with a non-positive interval are skipped.
func (r *Runner) Start(ctx context.Context, jobs ...Job) {
	for _, job := range jobs {
		if job.Interval <= 0 || job.Run == nil {
			r.logger.Warn("skipping background job", "job_type", job.Type, "interval", job.Interval)
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
}

// Wait blocks until every started job has stopped.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.RunOnce(ctx, job)
		}
	}
}

// RunOnce runs job a single time and records the outcome.
func (r *Runner) RunOnce(ctx context.Context, job Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx)
	r.metrics.ObserveJobDuration(job.Type, time.Since(start).Seconds())
	if err != nil {
		r.metrics.IncJobsTotal(job.Type, StatusFailure)
		r.metrics.IncJobErrors(job.Type, errorType(err))
		r.logger.WarnContext(ctx, "background job failed", "job_type", job.Type, "error", err)
		return err
	}
	r.metrics.IncJobsTotal(job.Type, StatusSuccess)
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
