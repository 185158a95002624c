// Package backoff retries store writes with exponential backoff and jitter.
package backoff

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// Config holds configuration for retry with backoff.
type Config struct {
	// MaxAttempts counts the initial attempt. Default: 5
	MaxAttempts int

	// Initial is the first sleep between attempts. Default: 100ms
	Initial time.Duration

	// Max caps the sleep between attempts. Default: 5s
	Max time.Duration

	// Multiplier grows the sleep after each attempt. Default: 2.0
	Multiplier float64

	// Jitter is the fraction of each sleep to randomize (0.0 to 1.0). Default: 0.1
	Jitter float64
}

// Default returns the configuration used for post-fire store writes.
func Default() Config {
	return Config{
		MaxAttempts: 5,
		Initial:     100 * time.Millisecond,
		Max:         5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// Retry runs op until it succeeds, returns a permanent error, or the
// attempts are exhausted. The last error is returned.
func Retry(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	wait := cfg.Initial

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !Retryable(err) || attempt >= cfg.MaxAttempts {
			return err
		}

		sleep := wait + time.Duration(float64(wait)*cfg.Jitter*(rand.Float64()*2-1))
		if sleep < 0 {
			sleep = wait
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		wait = time.Duration(float64(wait) * cfg.Multiplier)
		if cfg.Max > 0 && wait > cfg.Max {
			wait = cfg.Max
		}
	}
}

// Retryable reports whether err is worth another attempt. Context errors
// and validation failures are permanent; anything else is assumed to be
// a transient database problem.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, core.ErrInvalidSchedule):
		return false
	}
	return true
}
