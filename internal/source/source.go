package source

import (
	"fmt"
	"net/url"
	"strings"
)

// Code identifies where a price comes from. Codes are two letters and
// compared case-insensitively.
type Code string

const (
	// FT is the Financial Times fund tearsheet page.
	FT Code = "FT"
	// MS is the Morningstar Asia QuickTake overview page.
	MS Code = "MS"
	// GF is the Google Finance quote page.
	GF Code = "GF"
	// YH is the Yahoo Finance quote API.
	YH Code = "YH"
)

// ParseCode normalizes a raw source code. Unknown codes are returned
// upper-cased rather than rejected so they can be reported per instrument.
func ParseCode(raw string) Code {
	return Code(strings.ToUpper(strings.TrimSpace(raw)))
}

// Plan is the resolved strategy for fetching one instrument. It is either a
// WebPlan or an APIPlan.
type Plan interface {
	isPlan()
}

// WebPlan describes a scraped page and the element holding the price.
type WebPlan struct {
	URL     string
	Locator string
}

// APIPlan describes a quote API lookup by ticker symbol.
type APIPlan struct {
	Symbol string
}

func (WebPlan) isPlan() {}
func (APIPlan) isPlan() {}

type webSource struct {
	url     func(identifier string) string
	locator string
}

var webSources = map[Code]webSource{
	FT: {
		url: func(id string) string {
			return "https://markets.ft.com/data/funds/tearsheet/summary?s=" + url.QueryEscape(id)
		},
		locator: ".mod-ui-data-list__value",
	},
	MS: {
		url: func(id string) string {
			return "https://asialt.morningstar.com/DSB/QuickTake/overview.aspx?code=" + url.QueryEscape(id)
		},
		locator: "#mainContent_quicktakeContent_fvOverview_lblNAV",
	},
	GF: {
		// Google Finance identifiers look like NASDAQ:AAPL; the colon stays literal.
		url: func(id string) string {
			return "https://www.google.com/finance/quote/" + url.PathEscape(id)
		},
		locator: ".YMlKec.fxKbKc",
	},
}

// Resolve maps a source code and identifier to a fetch plan. It reports false
// for codes it does not know.
func Resolve(code string, identifier string) (Plan, bool) {
	c := ParseCode(code)
	if c == YH {
		return APIPlan{Symbol: identifier}, true
	}
	ws, ok := webSources[c]
	if !ok {
		return nil, false
	}
	return WebPlan{URL: ws.url(identifier), Locator: ws.locator}, true
}

// Known reports whether code resolves to a plan.
func Known(code string) bool {
	c := ParseCode(code)
	_, ok := webSources[c]
	return ok || c == YH
}

// Codes returns every supported code in a stable order.
func Codes() []Code {
	return []Code{FT, MS, GF, YH}
}

func (p WebPlan) String() string {
	return fmt.Sprintf("web %s [%s]", p.URL, p.Locator)
}

func (p APIPlan) String() string {
	return "api " + p.Symbol
}
