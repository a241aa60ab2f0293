// Package ratelimit implements the token-bucket governor shared by the
// brochure-catalog and brochure-download stages (component G).
package ratelimit

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limiter is a single named token bucket. Capacity equals the configured
// rate (at least 1), refilled continuously; Acquire consumes one token
// and blocks the caller until a token is available or ctx is cancelled.
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// New creates a Limiter with the given permits-per-second rate. Burst
// capacity is the rate truncated to a whole number, raised to at least 1.
func New(name string, permitsPerSecond float64) *Limiter {
	burst := int(permitsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(permitsPerSecond), burst),
	}
}

// Name returns the bucket's identifier (e.g. "api_rate_limit").
func (l *Limiter) Name() string { return l.name }

// Acquire blocks until one permit is available, or returns promptly with a
// cancellation error if ctx is done first.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "ratelimit: acquire %s", l.name)
	}
	return nil
}

// Buckets holds the two independent rate-limit buckets spec.md §4.G names:
// api_rate_limit (BrochureCatalog) and download_rate_limit (BrochureFetcher).
type Buckets struct {
	API      *Limiter
	Download *Limiter
}

// NewBuckets builds the standard pair of buckets from configured rates.
func NewBuckets(apiRate, downloadRate float64) *Buckets {
	return &Buckets{
		API:      New("api_rate_limit", apiRate),
		Download: New("download_rate_limit", downloadRate),
	}
}
