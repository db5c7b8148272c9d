package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"fundprice/internal/fetcher"
	"fundprice/internal/quote"
)

// DefaultBaseURL is the public Yahoo Finance query host.
const DefaultBaseURL = "https://query2.finance.yahoo.com"

// rawValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} number wrapper.
type rawValue struct {
	Raw *json.Number `json:"raw"`
	Fmt string       `json:"fmt"`
}

// QuoteSummaryResponse represents the quoteSummary payload for the
// financialData and price modules.
type QuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData *struct {
				CurrentPrice *rawValue `json:"currentPrice"`
			} `json:"financialData"`
			Price *struct {
				Symbol             string    `json:"symbol"`
				RegularMarketPrice *rawValue `json:"regularMarketPrice"`
			} `json:"price"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// ChartResponse represents the chart payload. Only the meta block is read.
type ChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string       `json:"symbol"`
				RegularMarketPrice *json.Number `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Provider fetches quotes from the Yahoo Finance quoteSummary endpoint,
// falling back to the chart endpoint when quoteSummary refuses the request
// for lack of a cookie/crumb pair.
type Provider struct {
	client *resty.Client
}

// NewProvider creates a Yahoo quote provider using client, whose base URL
// must point at a Yahoo query host.
func NewProvider(client *resty.Client) *Provider {
	return &Provider{client: client}
}

// Name identifies the provider in logs.
func (p *Provider) Name() string {
	return "yahoo"
}

// Quote retrieves the current and regular market price for symbol.
func (p *Provider) Quote(ctx context.Context, symbol string) (quote.Quote, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("modules", "financialData,price").
		Get("/v10/finance/quoteSummary/{symbol}")
	if err != nil {
		return quote.Quote{}, fetcher.AsFetchError(err)
	}

	if code := resp.StatusCode(); code == http.StatusUnauthorized || code == http.StatusForbidden {
		slog.Debug("quoteSummary refused, using chart endpoint", "symbol", symbol, "status", code)
		return p.chartQuote(ctx, symbol)
	}

	var result QuoteSummaryResponse
	body := resp.String()
	decodeErr := json.Unmarshal([]byte(body), &result)

	// Yahoo reports unknown symbols with an error object and a 404.
	if decodeErr == nil && result.QuoteSummary.Error != nil {
		desc := result.QuoteSummary.Error.Description
		if desc == "" {
			desc = result.QuoteSummary.Error.Code
		}
		return quote.Quote{}, &fetcher.FetchError{
			Type:       fetcher.ErrorTypeNoData,
			StatusCode: resp.StatusCode(),
			Message:    desc,
		}
	}

	if !resp.IsSuccess() {
		fe := fetcher.ClassifyHTTPError(resp.StatusCode())
		if resp.StatusCode() == 429 {
			fe.Message = fmt.Sprintf("rate limited by yahoo for %s", symbol)
		}
		return quote.Quote{}, fe
	}

	if decodeErr != nil {
		return quote.Quote{}, &fetcher.FetchError{
			Type:    fetcher.ErrorTypeNetwork,
			Message: fmt.Sprintf("malformed quote payload for %s", symbol),
			Cause:   decodeErr,
		}
	}

	q := quote.Quote{Symbol: symbol}
	if len(result.QuoteSummary.Result) == 0 {
		return q, nil
	}

	r := result.QuoteSummary.Result[0]
	if r.FinancialData != nil {
		if q.CurrentPrice, err = r.FinancialData.CurrentPrice.decimal(); err != nil {
			return quote.Quote{}, malformed(symbol, "currentPrice", err)
		}
	}
	if r.Price != nil {
		if r.Price.Symbol != "" {
			q.Symbol = strings.ToUpper(r.Price.Symbol)
		}
		if q.RegularMarketPrice, err = r.Price.RegularMarketPrice.decimal(); err != nil {
			return quote.Quote{}, malformed(symbol, "regularMarketPrice", err)
		}
	}

	return q, nil
}

// chartQuote reads the regular market price from the chart endpoint, which
// does not require a crumb. It never carries a current price.
func (p *Provider) chartQuote(ctx context.Context, symbol string) (quote.Quote, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"range":    "1d",
			"interval": "1d",
		}).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		return quote.Quote{}, fetcher.AsFetchError(err)
	}

	var result ChartResponse
	decodeErr := json.Unmarshal([]byte(resp.String()), &result)

	if decodeErr == nil && result.Chart.Error != nil {
		desc := result.Chart.Error.Description
		if desc == "" {
			desc = result.Chart.Error.Code
		}
		return quote.Quote{}, &fetcher.FetchError{
			Type:       fetcher.ErrorTypeNoData,
			StatusCode: resp.StatusCode(),
			Message:    desc,
		}
	}

	if !resp.IsSuccess() {
		return quote.Quote{}, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	if decodeErr != nil {
		return quote.Quote{}, &fetcher.FetchError{
			Type:    fetcher.ErrorTypeNetwork,
			Message: fmt.Sprintf("malformed chart payload for %s", symbol),
			Cause:   decodeErr,
		}
	}

	q := quote.Quote{Symbol: symbol}
	if len(result.Chart.Result) == 0 {
		return q, nil
	}

	meta := result.Chart.Result[0].Meta
	if meta.Symbol != "" {
		q.Symbol = strings.ToUpper(meta.Symbol)
	}
	raw := &rawValue{Raw: meta.RegularMarketPrice}
	if q.RegularMarketPrice, err = raw.decimal(); err != nil {
		return quote.Quote{}, malformed(symbol, "regularMarketPrice", err)
	}
	return q, nil
}

// decimal converts the raw number, returning nil when the field is absent
// or null.
func (v *rawValue) decimal() (*decimal.Decimal, error) {
	if v == nil || v.Raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.Raw.String())
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func malformed(symbol, field string, err error) *fetcher.FetchError {
	return &fetcher.FetchError{
		Type:    fetcher.ErrorTypeNetwork,
		Message: fmt.Sprintf("malformed %s for %s", field, symbol),
		Cause:   err,
	}
}
