// Package polling drives a caller-supplied status probe on a fixed cadence
// until it reports completion, fails, or an overall deadline elapses. Probes
// run strictly sequentially; a probe is never issued while a prior one is
// outstanding, and probe errors terminate the observation unchanged.
package polling

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prath-devops/sfdx-core/internal/duration"
)

// StatusResult is a snapshot of a monitored operation at one observation
// instant. Payload is only meaningful when Completed is true; it is the
// terminal value returned to the caller.
type StatusResult struct {
	Completed bool
	Payload   any
}

// Probe reports the current status of a monitored operation. It may block;
// the client imposes no per-call timeout beyond the overall deadline check
// that happens after it returns.
type Probe func(ctx context.Context) (StatusResult, error)

// Options configures a Client. Options are copied at construction and never
// consulted again.
type Options struct {
	// Probe is the status check invoked each attempt. Required.
	Probe Probe
	// Frequency is the interval between scheduled attempt starts. Required,
	// must be positive.
	Frequency duration.Duration
	// Timeout bounds the total observation time. Required, must be positive.
	Timeout duration.Duration
	// Cadence overrides the fixed-frequency schedule, e.g. with Backoff.
	// Optional; defaults to Fixed(Frequency).
	Cadence Cadence
	// Logger receives per-attempt debug records. Optional.
	Logger *slog.Logger
}

// Client observes one remote operation to a single terminal outcome. Each
// observation requires a fresh Client.
type Client struct {
	probe   Probe
	cadence Cadence
	timeout time.Duration
	logger  *slog.Logger
	started atomic.Bool
}

// New validates opts and returns a ready, not-yet-started client.
func New(opts Options) (*Client, error) {
	if opts.Probe == nil {
		return nil, &ConfigError{Field: "probe", Reason: "is required"}
	}
	if !opts.Frequency.IsPositive() {
		return nil, &ConfigError{Field: "frequency", Reason: "must be a positive duration"}
	}
	if !opts.Timeout.IsPositive() {
		return nil, &ConfigError{Field: "timeout", Reason: "must be a positive duration"}
	}

	cadence := opts.Cadence
	if cadence == nil {
		cadence = Fixed(opts.Frequency.Std())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		probe:   opts.Probe,
		cadence: cadence,
		timeout: opts.Timeout.Std(),
		logger:  logger,
	}, nil
}

// Observe polls the probe until it reports completion and returns that
// result's payload. It settles exactly once: with the payload, with the
// probe's own error forwarded unwrapped, with a *TimeoutError once the next
// attempt's scheduled start would fall on or after the deadline, or with
// ctx.Err() if the context is cancelled during a wait.
//
// The first probe fires immediately. Every later attempt is anchored to the
// observation start time (scheduled start of attempt n+1 = start + sum of
// cadence steps), so a slow probe does not skew subsequent intervals.
func (c *Client) Observe(ctx context.Context) (any, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrObserveReused
	}

	start := time.Now()
	var offset time.Duration // scheduled start of the current attempt, relative to start

	for attempt := 1; ; attempt++ {
		res, err := c.probe(ctx)
		if err != nil {
			// Forward the probe's failure verbatim; no retry, no wrapping.
			return nil, err
		}
		if res.Completed {
			c.logger.Debug("probe completed", "attempts", attempt, "elapsed", time.Since(start))
			return res.Payload, nil
		}

		// The deadline is evaluated only between attempts: an attempt whose
		// scheduled start falls on or after the deadline is never issued.
		offset += c.cadence.Next(attempt)
		if offset >= c.timeout {
			c.logger.Debug("observation timed out", "attempts", attempt, "timeout", c.timeout)
			return nil, &TimeoutError{Timeout: c.timeout, Attempts: attempt}
		}

		if err := sleepUntil(ctx, start.Add(offset)); err != nil {
			return nil, err
		}
	}
}

// sleepUntil blocks until the target instant or context cancellation,
// whichever comes first. Targets in the past return immediately.
func sleepUntil(ctx context.Context, target time.Time) error {
	wait := time.Until(target)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
