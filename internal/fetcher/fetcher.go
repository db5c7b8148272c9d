package fetcher

import "context"

// TextFetcher retrieves the text of one element on a rendered web page.
type TextFetcher interface {
	// FetchText loads url and returns the trimmed text of the first element
	// matching locator. Failures are returned as *FetchError.
	FetchText(ctx context.Context, url, locator string) (string, error)
}

// PriceFetcher retrieves a price for a ticker symbol from a quote API.
type PriceFetcher interface {
	// FetchPrice returns the price rendered as a plain decimal string.
	// Failures are returned as *FetchError.
	FetchPrice(ctx context.Context, symbol string) (string, error)
}
