// Package ratelimit spaces out calls to external platforms.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer lets one call through per interval. The first call is immediate.
type Pacer struct {
	limiter *rate.Limiter
	count   int
}

func NewPacer(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	p.count++
	return nil
}

// Count is the number of calls let through so far.
func (p *Pacer) Count() int {
	return p.count
}
