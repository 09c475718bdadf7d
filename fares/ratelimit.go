package fares

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"fareflow/collector"
	"fareflow/models"
)

// RateLimited throttles the calls made to a wrapped finder. One limiter may
// be shared by several finders to cap the load on a common backend.
type RateLimited struct {
	next    collector.Finder
	limiter *rate.Limiter
}

// NewLimiter builds a token bucket limiter. A rate of zero or less means
// unlimited.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func NewRateLimited(next collector.Finder, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter}
}

// Limit wraps every finder with the same limiter.
func Limit(finders []collector.Finder, limiter *rate.Limiter) []collector.Finder {
	out := make([]collector.Finder, len(finders))
	for i, f := range finders {
		out[i] = NewRateLimited(f, limiter)
	}
	return out
}

func (r *RateLimited) Category() collector.Category { return r.next.Category() }

// FindFares waits for a token before calling the wrapped finder. A context
// cancelled while waiting is reported as an abort.
func (r *RateLimited) FindFares(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) (collector.Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return collector.Result{}, fmt.Errorf("%w: %v", collector.ErrAborted, err)
		}
		return collector.Result{}, fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.FindFares(ctx, trx, fm)
}
