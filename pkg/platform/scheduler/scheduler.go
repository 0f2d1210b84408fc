// Package scheduler runs periodic background passes.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"auctioneer/pkg/platform/lock"
)

// Pass is one unit of periodic work.
type Pass func(ctx context.Context) error

// Job runs a Pass once on start and then on every tick, holding a lease for
// the duration of each pass. Overlapping ticks are skipped, not queued.
type Job struct {
	name     string
	interval time.Duration
	pass     Pass
	locker   lock.Locker
	leaseTTL time.Duration
	logger   *slog.Logger
}

type Option func(*Job)

func WithLocker(l lock.Locker) Option {
	return func(j *Job) {
		if l != nil {
			j.locker = l
		}
	}
}

// WithLeaseTTL bounds how long a crashed replica can block the pass.
func WithLeaseTTL(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.leaseTTL = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		if logger != nil {
			j.logger = logger
		}
	}
}

func New(name string, interval time.Duration, pass Pass, opts ...Option) *Job {
	j := &Job{
		name:     name,
		interval: interval,
		pass:     pass,
		locker:   lock.NewMemory(),
		leaseTTL: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.leaseTTL <= 0 {
		j.leaseTTL = time.Minute
	}
	return j
}

func (j *Job) Name() string { return j.name }

// Run blocks until ctx is cancelled.
func (j *Job) Run(ctx context.Context) error {
	if j.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	j.RunOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single pass if the lease can be taken.
func (j *Job) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	release, err := j.locker.Acquire(ctx, j.name, j.leaseTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		j.logger.DebugContext(ctx, "pass skipped, lease held elsewhere", "job", j.name)
		return
	}
	if err != nil {
		j.logger.WarnContext(ctx, "failed to acquire pass lease", "job", j.name, "error", err)
		return
	}
	defer func() {
		// release even when ctx is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			j.logger.WarnContext(ctx, "failed to release pass lease", "job", j.name, "error", err)
		}
	}()

	start := time.Now()
	if err := j.pass(ctx); err != nil {
		j.logger.ErrorContext(ctx, "pass failed", "job", j.name, "error", err)
		return
	}
	j.logger.DebugContext(ctx, "pass complete", "job", j.name, "duration", time.Since(start))
}
