package web

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fundprice/internal/fetcher"
)

const (
	// DefaultNavigationTimeout bounds page loading.
	DefaultNavigationTimeout = 30 * time.Second
	// DefaultWaitTimeout bounds waiting for the price element. Prices are often
	// rendered by scripts after the document is ready, so this is longer.
	DefaultWaitTimeout = 60 * time.Second
)

// Fetcher reads a single text value from a web page.
type Fetcher struct {
	renderer          Renderer
	navigationTimeout time.Duration
	waitTimeout       time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeouts overrides the navigation and element-wait budgets. Zero
// values keep the defaults.
func WithTimeouts(navigation, wait time.Duration) Option {
	return func(f *Fetcher) {
		if navigation > 0 {
			f.navigationTimeout = navigation
		}
		if wait > 0 {
			f.waitTimeout = wait
		}
	}
}

// NewFetcher creates a web fetcher on top of renderer.
func NewFetcher(renderer Renderer, opts ...Option) *Fetcher {
	f := &Fetcher{
		renderer:          renderer,
		navigationTimeout: DefaultNavigationTimeout,
		waitTimeout:       DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchText loads url and returns the trimmed text of the first element
// matching locator. Every failure comes back as a *fetcher.FetchError.
func (f *Fetcher) FetchText(ctx context.Context, url, locator string) (string, error) {
	navCtx, cancel := context.WithTimeout(ctx, f.navigationTimeout)
	err := f.renderer.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return "", classify(err, fmt.Sprintf("navigation to %s timed out after %s", url, f.navigationTimeout))
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.waitTimeout)
	text, err := f.renderer.WaitText(waitCtx, locator)
	cancel()
	if err != nil {
		return "", classify(err, fmt.Sprintf("waiting for %q timed out after %s", locator, f.waitTimeout))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fetcher.NewNotFoundError(fmt.Sprintf("element %q on %s has no text", locator, url))
	}
	return text, nil
}

func classify(err error, timeoutMessage string) *fetcher.FetchError {
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fetcher.NewTimeoutError(timeoutMessage, err)
	}
	return fetcher.NewNetworkError(err)
}
