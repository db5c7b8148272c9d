package acquirer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fundprice/internal/fetcher"
	"fundprice/internal/ratelimit"
	"fundprice/internal/source"
)

// Acquirer turns one configured instrument into an Outcome. It never fails:
// every error becomes an error-valued outcome.
type Acquirer struct {
	web     fetcher.TextFetcher
	api     fetcher.PriceFetcher
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithLimiter gates each request through limiter, keyed by source code.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(a *Acquirer) {
		a.limiter = limiter
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Acquirer) {
		a.now = now
	}
}

// New creates an Acquirer. Either fetcher may be nil, in which case
// instruments needing it fail with an error outcome.
func New(web fetcher.TextFetcher, api fetcher.PriceFetcher, opts ...Option) *Acquirer {
	a := &Acquirer{
		web: web,
		api: api,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire fetches the price for ref.
func (a *Acquirer) Acquire(ctx context.Context, ref fetcher.InstrumentRef) fetcher.Outcome {
	start := time.Now()

	value, err := a.fetch(ctx, ref)

	var out fetcher.Outcome
	if err != nil {
		out = fetcher.NewErrorOutcome(ref, err, a.now())
		slog.Warn("price fetch failed",
			"source", ref.Source,
			"identifier", ref.Identifier,
			"error_type", err.Type,
			"error", err.Error(),
			"duration", time.Since(start))
	} else {
		out = fetcher.NewOutcome(ref, value, a.now())
		slog.Info("price fetched",
			"source", ref.Source,
			"identifier", ref.Identifier,
			"price", value,
			"duration", time.Since(start))
	}
	return out
}

func (a *Acquirer) fetch(ctx context.Context, ref fetcher.InstrumentRef) (value string, fe *fetcher.FetchError) {
	defer func() {
		if r := recover(); r != nil {
			value = ""
			fe = &fetcher.FetchError{
				Type:    fetcher.ErrorTypeUnknown,
				Message: fmt.Sprintf("panic while fetching %s: %v", ref, r),
			}
		}
	}()

	plan, ok := source.Resolve(string(ref.Source), ref.Identifier)
	if !ok {
		return "", fetcher.NewUnsupportedSourceError(string(ref.Source))
	}

	if err := a.limiter.Wait(ctx, ref.Source); err != nil {
		return "", fetcher.AsFetchError(err)
	}

	var err error
	switch p := plan.(type) {
	case source.WebPlan:
		if a.web == nil {
			return "", fetcher.NewNotConfiguredError("web")
		}
		value, err = a.web.FetchText(ctx, p.URL, p.Locator)
	case source.APIPlan:
		if a.api == nil {
			return "", fetcher.NewNotConfiguredError("api")
		}
		value, err = a.api.FetchPrice(ctx, p.Symbol)
	default:
		return "", fetcher.NewUnsupportedSourceError(string(ref.Source))
	}

	if err != nil {
		return "", fetcher.AsFetchError(err)
	}
	return value, nil
}
