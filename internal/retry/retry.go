// Package retry implements the bounded-retry wrapper (component H) used by
// BrochureCatalog and BrochureFetcher: a classifier decides whether a
// failure is worth retrying, and backoff grows exponentially with jitter.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
)

// Classification is the outcome of inspecting a failed operation's error.
type Classification int

const (
	// Transient errors are retried while attempts remain.
	Transient Classification = iota
	// Terminal errors propagate immediately without further retries.
	Terminal
)

// Classifier decides whether an error is worth retrying. classify(err)
// must be a pure function of err (spec.md §8 testable property 7).
type Classifier func(err error) Classification

const (
	baseBackoff = 1000 * time.Millisecond
	maxBackoff  = 60_000 * time.Millisecond
)

// Executor runs an operation with bounded retries and exponential backoff.
type Executor struct {
	// Sleep is overridable in tests; defaults to a real timer honoring ctx.
	Sleep func(ctx context.Context, d time.Duration)
}

// NewExecutor returns a RetryExecutor using real wall-clock sleeps.
func NewExecutor() *Executor {
	return &Executor{Sleep: realSleep}
}

// Run invokes op. On failure it classifies the error; if Transient and
// attempts remain, it sleeps for Backoff(attempt) and retries, otherwise it
// wraps and returns the last error.
func (e *Executor) Run(ctx context.Context, op func(ctx context.Context) error, classify Classifier, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "retry: context cancelled")
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Terminal {
			return eris.Wrap(err, "retry: terminal error")
		}

		if attempt == maxAttempts {
			break
		}

		e.sleep(ctx, Backoff(attempt))
	}

	return eris.Wrapf(lastErr, "retry: exhausted %d attempts", maxAttempts)
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(ctx, d)
		return
	}
	realSleep(ctx, d)
}

func realSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Backoff computes the sleep duration before retry attempt n (1-indexed):
// min(base * 2^(n-1), maxBackoff) with +/-20% uniform jitter.
func Backoff(attempt int) time.Duration {
	d := time.Duration(float64(baseBackoff) * math.Pow(2, float64(attempt-1)))
	if d > maxBackoff {
		d = maxBackoff
	}

	// +/-20% uniform jitter.
	jitterRange := float64(d) * 0.4
	jitter := (rand.Float64() - 0.5) * jitterRange
	d += time.Duration(jitter)
	if d < 0 {
		d = 0
	}
	return d
}
