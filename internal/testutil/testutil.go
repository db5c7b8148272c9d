package testutil

import (
	"context"
	"sync"
)

// MockTextFetcher is a mock implementation of fetcher.TextFetcher for testing
type MockTextFetcher struct {
	FetchTextFunc func(ctx context.Context, url, locator string) (string, error)

	mu    sync.Mutex
	calls []string
}

// FetchText implements the fetcher.TextFetcher interface
func (m *MockTextFetcher) FetchText(ctx context.Context, url, locator string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.mu.Unlock()

	if m.FetchTextFunc != nil {
		return m.FetchTextFunc(ctx, url, locator)
	}
	return "", nil
}

// Calls returns the URLs requested so far, in order.
func (m *MockTextFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockPriceFetcher is a mock implementation of fetcher.PriceFetcher for testing
type MockPriceFetcher struct {
	FetchPriceFunc func(ctx context.Context, symbol string) (string, error)

	mu    sync.Mutex
	calls []string
}

// FetchPrice implements the fetcher.PriceFetcher interface
func (m *MockPriceFetcher) FetchPrice(ctx context.Context, symbol string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()

	if m.FetchPriceFunc != nil {
		return m.FetchPriceFunc(ctx, symbol)
	}
	return "", nil
}

// Calls returns the symbols requested so far, in order.
func (m *MockPriceFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// NewMockTextFetcher creates a simple mock returning prices keyed by URL.
// URLs not in the map fail with err, or return "" when err is nil.
func NewMockTextFetcher(prices map[string]string, err error) *MockTextFetcher {
	return &MockTextFetcher{
		FetchTextFunc: func(ctx context.Context, url, locator string) (string, error) {
			if p, ok := prices[url]; ok {
				return p, nil
			}
			return "", err
		},
	}
}

// NewMockPriceFetcher creates a simple mock returning prices keyed by symbol.
func NewMockPriceFetcher(prices map[string]string, err error) *MockPriceFetcher {
	return &MockPriceFetcher{
		FetchPriceFunc: func(ctx context.Context, symbol string) (string, error) {
			if p, ok := prices[symbol]; ok {
				return p, nil
			}
			return "", err
		},
	}
}
