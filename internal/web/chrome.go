package web

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer drives one headless Chrome tab for the whole run.
type ChromeRenderer struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

// NewChromeRenderer starts a headless browser and opens a tab. The browser
// lives until Close is called or parent is cancelled.
func NewChromeRenderer(parent context.Context, userAgent string) (*ChromeRenderer, error) {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser. It must not carry a timeout, or the
	// browser is torn down when that timeout fires.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &ChromeRenderer{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}, nil
}

// Navigate loads url in the shared tab.
func (r *ChromeRenderer) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := r.scoped(ctx)
	defer cancel()

	return chromedp.Run(runCtx, chromedp.Navigate(url))
}

// WaitText waits for locator to become visible and reads the first match's
// textContent, which includes text in hidden descendants.
func (r *ChromeRenderer) WaitText(ctx context.Context, locator string) (string, error) {
	runCtx, cancel := r.scoped(ctx)
	defer cancel()

	var text string
	err := chromedp.Run(runCtx,
		chromedp.WaitVisible(locator, chromedp.ByQuery),
		chromedp.TextContent(locator, &text, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Close shuts the tab and the browser process.
func (r *ChromeRenderer) Close() error {
	r.tabCancel()
	r.allocCancel()
	return nil
}

// scoped derives a context from the tab that carries ctx's deadline and
// cancellation. Expiry of the derived context leaves the tab open.
func (r *ChromeRenderer) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(r.tabCtx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(r.tabCtx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
