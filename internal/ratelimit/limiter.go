package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"fundprice/internal/source"
)

// Limiter manages request rates per price source
type Limiter struct {
	limiters map[source.Code]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter from requests-per-second values keyed by source code.
// A rate of zero or less leaves that source unlimited.
func New(perSecond map[source.Code]float64) *Limiter {
	l := &Limiter{
		limiters: make(map[source.Code]*rate.Limiter, len(perSecond)),
	}
	for code, rps := range perSecond {
		l.Set(code, rps)
	}
	return l
}

// Set replaces the limit for one source.
func (l *Limiter) Set(code source.Code, perSecond float64) {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	l.mu.Lock()
	l.limiters[code] = rate.NewLimiter(limit, 1)
	l.mu.Unlock()
}

// Wait blocks until the rate limiter permits a request to the given source.
// It returns an error if the context is canceled before the request can proceed.
// A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context, code source.Code) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[code]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this source, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}
