package web

import "context"

// DefaultUserAgent is sent by both renderers. Several sources serve a
// reduced page to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/115.0.0.0 Safari/537.36"

// Renderer loads pages and reads element text. Implementations hold one
// page at a time and are used sequentially.
//
//go:generate mockgen -package=testutil -destination=../testutil/mock_renderer.go -source=renderer.go Renderer
type Renderer interface {
	// Navigate loads url and returns once the document is ready.
	Navigate(ctx context.Context, url string) error
	// WaitText waits for the first element matching locator to be visible
	// on the current page and returns its text content.
	WaitText(ctx context.Context, locator string) (string, error)
}
