package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	MaxTotalTimeout time.Duration
}

// DefaultConfig returns the default retry configuration used for
// infrastructure connects: up to ten attempts within one minute.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     10,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 60 * time.Second,
	}
}

// OnAttempt is invoked after each failed attempt with the delay before
// the next one.
type OnAttempt func(attempt int, err error, nextDelay time.Duration)

// Do executes fn with exponential backoff until it succeeds, the
// attempt budget is spent, or the context is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return DoWithLog(ctx, cfg, "", fn, nil)
}

// DoWithLog is Do with a label for error messages and an optional
// per-attempt observer.
func DoWithLog(ctx context.Context, cfg Config, label string, fn func() error, onAttempt OnAttempt) error {
	if cfg.MaxTotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxTotalTimeout)
		defer cancel()
	}

	prefix := ""
	if label != "" {
		prefix = label + ": "
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return abortErr(prefix, attempt-1, ctx.Err(), lastErr)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		if onAttempt != nil {
			onAttempt(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return abortErr(prefix, attempt, ctx.Err(), lastErr)
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%smax retry attempts (%d) exceeded: %w", prefix, cfg.MaxAttempts, lastErr)
}

func abortErr(prefix string, attempts int, ctxErr, lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("%sretry aborted after %d attempts: %w (last error: %v)", prefix, attempts, ctxErr, lastErr)
	}
	return fmt.Errorf("%sretry aborted: %w", prefix, ctxErr)
}
