package web

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"resty.dev/v3"

	"fundprice/internal/fetcher"
)

// HTTPRenderer fetches pages with a plain HTTP GET and queries the returned
// HTML. It does not run scripts, so it only suits pages that render the
// price on the server.
type HTTPRenderer struct {
	client *resty.Client

	mu  sync.Mutex
	doc *goquery.Document
}

// NewHTTPRenderer creates a renderer using client for requests.
func NewHTTPRenderer(client *resty.Client) *HTTPRenderer {
	return &HTTPRenderer{client: client}
}

// Navigate downloads url and parses it as the current page.
func (r *HTTPRenderer) Navigate(ctx context.Context, url string) error {
	resp, err := r.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return err
	}

	if !resp.IsSuccess() {
		return fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return fmt.Errorf("failed to parse page %s: %w", url, err)
	}

	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
	return nil
}

// WaitText returns the text of the first element matching locator. Static
// pages never change, so a missing element fails immediately.
func (r *HTTPRenderer) WaitText(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	doc := r.doc
	r.mu.Unlock()

	if doc == nil {
		return "", fmt.Errorf("no page loaded")
	}

	sel := doc.Find(locator).First()
	if sel.Length() == 0 {
		return "", fetcher.NewNotFoundError(fmt.Sprintf("no element matches %q", locator))
	}
	return sel.Text(), nil
}
