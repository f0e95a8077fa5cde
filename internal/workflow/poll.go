package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maauso/reframe-api/internal/job"
)

// Wait defaults and bounds, matching the HTTP wait endpoint.
const (
	DefaultMaxWait      = 300 * time.Second
	DefaultPollInterval = 10 * time.Second

	MinMaxWait      = 30 * time.Second
	MaxMaxWait      = 600 * time.Second
	MinPollInterval = 5 * time.Second
	MaxPollInterval = 30 * time.Second
)

// ErrInvalidWaitOptions is returned when wait options fall outside their bounds.
var ErrInvalidWaitOptions = errors.New("invalid wait options")

// WaitOptions bounds a poll loop.
type WaitOptions struct {
	MaxWait      time.Duration
	PollInterval time.Duration
}

// DefaultWaitOptions returns the default wait budget.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{MaxWait: DefaultMaxWait, PollInterval: DefaultPollInterval}
}

// withDefaults fills zero fields from def.
func (o WaitOptions) withDefaults(def WaitOptions) WaitOptions {
	if o.MaxWait <= 0 {
		o.MaxWait = def.MaxWait
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// CheckBounds verifies the options against the public bounds
// (30s..600s wait, 5s..30s interval).
func (o WaitOptions) CheckBounds() error {
	if o.MaxWait < MinMaxWait || o.MaxWait > MaxMaxWait {
		return fmt.Errorf("%w: max wait must be between %s and %s", ErrInvalidWaitOptions, MinMaxWait, MaxMaxWait)
	}
	if o.PollInterval < MinPollInterval || o.PollInterval > MaxPollInterval {
		return fmt.Errorf("%w: poll interval must be between %s and %s", ErrInvalidWaitOptions, MinPollInterval, MaxPollInterval)
	}
	return nil
}

// WaitForCompletion polls checker every PollInterval until the job reaches a
// terminal status or MaxWait elapses.
// On timeout it returns the last report seen and an error wrapping ErrWaitTimeout.
// Status errors abort the loop immediately.
func WaitForCompletion(ctx context.Context, checker StatusChecker, jobID string, opts WaitOptions) (job.StatusReport, error) {
	opts = opts.withDefaults(DefaultWaitOptions())

	waitCtx, cancel := context.WithTimeout(ctx, opts.MaxWait)
	defer cancel()

	last := job.StatusReport{JobID: jobID, Status: job.StatusSubmitted}
	timedOut := func() error {
		return fmt.Errorf("%w: job %s after %s", ErrWaitTimeout, jobID, opts.MaxWait)
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, timedOut()
		case <-timer.C:
		}

		report, err := checker.Status(waitCtx, jobID)
		if err != nil {
			if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return last, timedOut()
			}
			return last, err
		}
		if report.JobID == "" {
			report.JobID = jobID
		}
		last = report

		if report.Status.IsTerminal() {
			return report, nil
		}

		timer.Reset(opts.PollInterval)
	}
}
