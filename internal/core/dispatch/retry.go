// Package dispatch bounds worker attempts: each delivered job runs through a
// retry schedule with per-attempt timeouts, and attempts for one job never
// overlap.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy is a bounded retry schedule. Delays holds the waits between
// attempts in order; when attempts outnumber the schedule, the last delay is
// reused.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

// DefaultPolicy mirrors the service defaults: three attempts with 10s/30s/60s
// between them.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delays:      []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second},
	}
}

// Delay returns the wait after failed attempt n (1-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[attempt-1]
}

// AttemptTimeoutError marks an attempt that exceeded its timeout. It is
// retried exactly like any other pipeline failure.
type AttemptTimeoutError struct {
	Timeout time.Duration
}

func (e *AttemptTimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %s", e.Timeout)
}

// Attempt is one execution of the pipeline for a job. The attempt number is
// 1-indexed.
type Attempt func(ctx context.Context, attempt int) error

// Dispatcher runs attempts for a single delivered job, strictly
// sequentially, each bounded by the attempt timeout.
type Dispatcher struct {
	policy  RetryPolicy
	timeout time.Duration

	// sleep is overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(policy RetryPolicy, timeout time.Duration) *Dispatcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Dispatcher{
		policy:  policy,
		timeout: timeout,
		sleep:   sleepCtx,
	}
}

// Run executes up to MaxAttempts attempts, waiting the scheduled delay
// between them. Returns nil on the first success, otherwise the last
// attempt's error after exhaustion. The caller owns the terminal state
// transition.
func (d *Dispatcher) Run(ctx context.Context, jobID string, run Attempt) error {
	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := run(attemptCtx, attempt)
		timedOut := attemptCtx.Err() != nil && ctx.Err() == nil
		cancel()

		if err == nil {
			return nil
		}
		if timedOut && errors.Is(err, context.DeadlineExceeded) {
			err = &AttemptTimeoutError{Timeout: d.timeout}
		}
		lastErr = err

		if ctx.Err() != nil {
			return lastErr
		}
		if attempt < d.policy.MaxAttempts {
			delay := d.policy.Delay(attempt)
			log.Warn().Err(err).
				Str("job_id", jobID).
				Int("attempt", attempt).
				Int("max_attempts", d.policy.MaxAttempts).
				Dur("retry_in", delay).
				Msg("attempt failed, retrying")
			if serr := d.sleep(ctx, delay); serr != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
