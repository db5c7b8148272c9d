package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fundprice/internal/acquirer"
	"fundprice/internal/alphavantage"
	"fundprice/internal/config"
	"fundprice/internal/coordinator"
	"fundprice/internal/fetcher"
	"fundprice/internal/history"
	"fundprice/internal/logx"
	"fundprice/internal/quote"
	"fundprice/internal/ratelimit"
	"fundprice/internal/source"
	"fundprice/internal/web"
	"fundprice/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logx.NewDefault(cfg.LogLevel, cfg.LogFormat))

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Warn("received interrupt signal, shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// run fetches every configured instrument and commits the batch to the
// history store. A nil renderer is built from cfg. Per-instrument failures
// are persisted as error rows and do not make run fail; a cancelled ctx does,
// and then nothing is written.
func run(ctx context.Context, cfg *config.Config, renderer web.Renderer) error {
	refs, err := cfg.InstrumentRefs()
	if err != nil {
		return fmt.Errorf("failed to load instruments: %w", err)
	}
	if len(refs) == 0 {
		slog.Warn("no instruments configured, writing empty latest snapshot", "funds_file", cfg.FundsFile)
	}

	if renderer == nil && needsBrowser(refs) {
		r, closeFn, err := newRenderer(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		renderer = r
	}

	var webFetcher fetcher.TextFetcher
	if renderer != nil {
		webFetcher = web.NewFetcher(renderer, web.WithTimeouts(cfg.Web.NavigationTimeout, cfg.Web.WaitTimeout))
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	acq := acquirer.New(webFetcher, quote.NewFetcher(provider),
		acquirer.WithLimiter(ratelimit.New(cfg.RateLimits())))

	coord := coordinator.New(acq, cfg.DataDir)

	slog.Info("fetching prices", "instruments", len(refs), "provider", provider.Name())
	outcomes, err := coord.Run(ctx, refs)
	if err != nil {
		return fmt.Errorf("coordinator failed: %w", err)
	}

	// Outcomes gathered after cancellation are error rows that would replace
	// today's good prices, so an interrupted run persists nothing.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted, nothing persisted: %w", err)
	}

	keyMode, err := history.ParseKeyMode(cfg.History.KeyMode)
	if err != nil {
		return err
	}
	codec := history.NewCodec(cfg.Output.Format)
	if codec == nil {
		return fmt.Errorf("unsupported output format %q", cfg.Output.Format)
	}

	store := history.NewStore(cfg.DataDir, codec,
		history.WithKeyMode(keyMode),
		history.WithPriceFiles(cfg.Output.PriceFiles))
	if _, err := store.Commit(outcomes); err != nil {
		return err
	}

	return nil
}

// needsBrowser reports whether any instrument resolves to a scraped page.
func needsBrowser(refs []fetcher.InstrumentRef) bool {
	for _, ref := range refs {
		if plan, ok := source.Resolve(string(ref.Source), ref.Identifier); ok {
			if _, isWeb := plan.(source.WebPlan); isWeb {
				return true
			}
		}
	}
	return false
}

func newRenderer(ctx context.Context, cfg *config.Config) (web.Renderer, func(), error) {
	userAgent := cfg.Web.UserAgent
	if userAgent == "" {
		userAgent = web.DefaultUserAgent
	}

	switch strings.ToLower(cfg.Web.Renderer) {
	case "http":
		client := fetcher.NewHTTPClient("", fetcher.HTTPOptions{
			Timeout:    cfg.Web.NavigationTimeout,
			RetryCount: cfg.HTTP.RetryCount,
			UserAgent:  userAgent,
			Accept:     "text/html,application/xhtml+xml",
		})
		return web.NewHTTPRenderer(client), func() { client.Close() }, nil
	default:
		r, err := web.NewChromeRenderer(ctx, userAgent)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {
			if err := r.Close(); err != nil {
				slog.Warn("failed to close browser", "error", err)
			}
		}, nil
	}
}

func newProvider(cfg *config.Config) (quote.Provider, error) {
	opts := fetcher.HTTPOptions{
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.HTTP.RetryCount,
		UserAgent:  web.DefaultUserAgent,
	}

	switch strings.ToLower(cfg.API.Provider) {
	case "yahoo":
		return yahoo.NewProvider(fetcher.NewHTTPClient(cfg.YahooBaseURL, opts)), nil
	case "alphavantage":
		return alphavantage.NewStockProvider(cfg.AlphavantageAPIKey,
			fetcher.NewHTTPClient(cfg.AlphavantageBaseURL, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported api provider %q", cfg.API.Provider)
	}
}
