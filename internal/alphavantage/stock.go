package alphavantage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"fundprice/internal/fetcher"
	"fundprice/internal/quote"
)

// DefaultBaseURL is the AlphaVantage query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// GlobalQuoteResponse represents the AlphaVantage API response for stock quotes
type GlobalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`
	// Note and Information carry throttling notices on the free tier.
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// StockProvider fetches stock quotes from AlphaVantage
type StockProvider struct {
	apiKey string
	client *resty.Client
}

// NewStockProvider creates a new AlphaVantage quote provider
func NewStockProvider(apiKey string, client *resty.Client) *StockProvider {
	return &StockProvider{
		apiKey: apiKey,
		client: client,
	}
}

// Name identifies the provider in logs.
func (p *StockProvider) Name() string {
	return "alphavantage"
}

// Quote retrieves the latest price and previous close. The latest price maps
// to the current price and the previous close to the regular market price.
func (p *StockProvider) Quote(ctx context.Context, symbol string) (quote.Quote, error) {
	var result GlobalQuoteResponse

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":   p.apiKey,
			"function": "GLOBAL_QUOTE",
			"symbol":   symbol,
		}).
		SetResult(&result).
		Get("")

	if err != nil {
		return quote.Quote{}, fetcher.AsFetchError(fmt.Errorf("failed to fetch stock price for %s: %w", symbol, err))
	}

	if !resp.IsSuccess() {
		return quote.Quote{}, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	if notice := result.Note + result.Information; notice != "" {
		return quote.Quote{}, fetcher.NewRateLimitError(resp.StatusCode(), notice)
	}

	q := quote.Quote{Symbol: symbol}
	if result.GlobalQuote.Symbol != "" {
		q.Symbol = result.GlobalQuote.Symbol
	}

	if q.CurrentPrice, err = parsePrice(result.GlobalQuote.Price); err != nil {
		return quote.Quote{}, fmt.Errorf("failed to parse stock price: %w", err)
	}
	if q.RegularMarketPrice, err = parsePrice(result.GlobalQuote.PreviousClose); err != nil {
		return quote.Quote{}, fmt.Errorf("failed to parse previous close: %w", err)
	}

	return q, nil
}

func parsePrice(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
