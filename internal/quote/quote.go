package quote

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"fundprice/internal/fetcher"
)

// Quote is the subset of a provider's quote payload used for pricing.
// A nil field means the provider did not report it.
type Quote struct {
	Symbol             string
	CurrentPrice       *decimal.Decimal
	RegularMarketPrice *decimal.Decimal
}

// Provider looks up quote data for a ticker symbol.
//
//go:generate mockgen -package=testutil -destination=../testutil/mock_provider.go -source=quote.go Provider
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// Fetcher resolves a single price for a symbol from a Provider.
type Fetcher struct {
	provider Provider
}

// NewFetcher creates a price fetcher backed by provider.
func NewFetcher(provider Provider) *Fetcher {
	return &Fetcher{provider: provider}
}

// FetchPrice returns the symbol's live price, falling back to the regular
// market price. Failures are returned as *fetcher.FetchError.
func (f *Fetcher) FetchPrice(ctx context.Context, symbol string) (string, error) {
	q, err := f.provider.Quote(ctx, symbol)
	if err != nil {
		return "", fetcher.AsFetchError(err)
	}

	switch {
	case q.CurrentPrice != nil:
		return q.CurrentPrice.String(), nil
	case q.RegularMarketPrice != nil:
		slog.Debug("current price missing, using regular market price",
			"provider", f.provider.Name(),
			"symbol", symbol)
		return q.RegularMarketPrice.String(), nil
	default:
		return "", fetcher.NewNoDataError(symbol)
	}
}
