// Package pacing spaces successive calls to external services. The
// delays between scraper requests are deliberate backoff against
// site-level blocking, so they are an explicit, injectable policy
// rather than sleeps scattered through the pipeline.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks until the next external call is allowed to proceed.
type Pacer interface {
	Wait(ctx context.Context) error
}

type fixedPacer struct {
	limiter *rate.Limiter
}

// NewFixed returns a Pacer that allows one call per interval. The first
// call passes immediately.
func NewFixed(interval time.Duration) Pacer {
	if interval <= 0 {
		return Nop()
	}
	return &fixedPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *fixedPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

type nopPacer struct{}

func (nopPacer) Wait(context.Context) error { return nil }

// Nop returns a Pacer that never blocks, for tests.
func Nop() Pacer {
	return nopPacer{}
}
