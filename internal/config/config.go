package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"fundprice/internal/fetcher"
	"fundprice/internal/history"
	"fundprice/internal/source"
)

// InstrumentConfig is one instrument listed in the config file.
type InstrumentConfig struct {
	Source     string `mapstructure:"source"`
	Identifier string `mapstructure:"identifier"`
}

// OutputConfig controls the files written after a run.
type OutputConfig struct {
	Format     string `mapstructure:"format"`
	PriceFiles bool   `mapstructure:"price_files"`
}

// HistoryConfig controls how history rows are deduplicated.
type HistoryConfig struct {
	KeyMode string `mapstructure:"key_mode"`
}

// WebConfig controls the scraped sources.
type WebConfig struct {
	Renderer          string        `mapstructure:"renderer"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// APIConfig controls the quote API source.
type APIConfig struct {
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// HTTPConfig holds settings shared by resty clients.
type HTTPConfig struct {
	RetryCount int `mapstructure:"retry_count"`
}

// Config holds all configuration for the fund price pipeline.
type Config struct {
	FundsFile   string             `mapstructure:"funds_file"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
	DataDir     string             `mapstructure:"data_dir"`

	Output  OutputConfig  `mapstructure:"output"`
	History HistoryConfig `mapstructure:"history"`
	Web     WebConfig     `mapstructure:"web"`
	API     APIConfig     `mapstructure:"api"`
	HTTP    HTTPConfig    `mapstructure:"http"`

	// API keys and base URLs for quote providers (configurable for testing)
	YahooBaseURL        string `mapstructure:"yahoo_base_url"`
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url"`
	AlphavantageAPIKey  string `mapstructure:"alphavantage_api_key"`

	// RateLimit is requests per second keyed by lower-case source code.
	RateLimit map[string]float64 `mapstructure:"rate_limit"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over config file values.
//
// CONFIG_FILE names the file explicitly; otherwise config.yaml is looked up in
// the working directory and $HOME/.fundprice.
//
// Expected environment variables:
//   - FUNDS_FILE (instrument list, one "<source>,<identifier>" per line)
//   - DATA_DIR (optional, defaults to data)
//   - OUTPUT_FORMAT (csv, json or parquet)
//   - HISTORY_KEY_MODE (composite or identifier)
//   - WEB_RENDERER (chrome or http)
//   - API_PROVIDER (yahoo or alphavantage)
//   - ALPHAVANTAGE_API_KEY (required when API_PROVIDER=alphavantage)
//   - YAHOO_BASE_URL, ALPHAVANTAGE_BASE_URL (optional, default to production)
//   - RATE_LIMIT_FT, RATE_LIMIT_MS, RATE_LIMIT_GF, RATE_LIMIT_YH
//   - LOG_LEVEL, LOG_FORMAT
func Load() (*Config, error) {
	v := viper.New()

	// Set up environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("funds_file", "funds.txt")
	v.SetDefault("data_dir", "data")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.price_files", true)
	v.SetDefault("history.key_mode", history.KeyComposite.String())
	v.SetDefault("web.renderer", "chrome")
	v.SetDefault("web.navigation_timeout", 30*time.Second)
	v.SetDefault("web.wait_timeout", 60*time.Second)
	v.SetDefault("api.provider", "yahoo")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("http.retry_count", 0)
	v.SetDefault("yahoo_base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("alphavantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fundprice")

		// Read config file (ignore if not found)
		_ = v.ReadInConfig()
	}

	v.BindEnv("funds_file", "FUNDS_FILE")
	v.BindEnv("data_dir", "DATA_DIR")
	v.BindEnv("output.format", "OUTPUT_FORMAT")
	v.BindEnv("output.price_files", "OUTPUT_PRICE_FILES")
	v.BindEnv("history.key_mode", "HISTORY_KEY_MODE")
	v.BindEnv("web.renderer", "WEB_RENDERER")
	v.BindEnv("web.navigation_timeout", "WEB_NAVIGATION_TIMEOUT")
	v.BindEnv("web.wait_timeout", "WEB_WAIT_TIMEOUT")
	v.BindEnv("web.user_agent", "WEB_USER_AGENT")
	v.BindEnv("api.provider", "API_PROVIDER")
	v.BindEnv("api.timeout", "API_TIMEOUT")
	v.BindEnv("http.retry_count", "HTTP_RETRY_COUNT")
	v.BindEnv("alphavantage_api_key", "ALPHAVANTAGE_API_KEY")
	v.BindEnv("yahoo_base_url", "YAHOO_BASE_URL")
	v.BindEnv("alphavantage_base_url", "ALPHAVANTAGE_BASE_URL")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("log_format", "LOG_FORMAT")
	for _, code := range source.Codes() {
		key := strings.ToLower(string(code))
		v.BindEnv("rate_limit."+key, "RATE_LIMIT_"+string(code))
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	var problems []string

	if history.NewCodec(c.Output.Format) == nil {
		problems = append(problems, fmt.Sprintf("OUTPUT_FORMAT %q (use csv, json or parquet)", c.Output.Format))
	}
	if _, err := history.ParseKeyMode(c.History.KeyMode); err != nil {
		problems = append(problems, fmt.Sprintf("HISTORY_KEY_MODE %q (use composite or identifier)", c.History.KeyMode))
	}
	switch strings.ToLower(c.Web.Renderer) {
	case "chrome", "http":
	default:
		problems = append(problems, fmt.Sprintf("WEB_RENDERER %q (use chrome or http)", c.Web.Renderer))
	}
	switch strings.ToLower(c.API.Provider) {
	case "yahoo":
	case "alphavantage":
		if c.AlphavantageAPIKey == "" {
			problems = append(problems, "ALPHAVANTAGE_API_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("API_PROVIDER %q (use yahoo or alphavantage)", c.API.Provider))
	}
	if c.Web.NavigationTimeout <= 0 || c.Web.WaitTimeout <= 0 || c.API.Timeout <= 0 {
		problems = append(problems, "timeouts must be positive")
	}
	if c.DataDir == "" {
		problems = append(problems, "DATA_DIR")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid or missing configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

// RateLimits returns the configured per-source rates keyed by source code.
func (c *Config) RateLimits() map[source.Code]float64 {
	limits := make(map[source.Code]float64, len(c.RateLimit))
	for code, rps := range c.RateLimit {
		limits[source.ParseCode(code)] = rps
	}
	return limits
}

// InstrumentRefs returns the instruments listed in the config file followed
// by those read from the funds file. A missing funds file is not an error
// when the config file lists instruments. An empty list is valid and makes an
// empty run. Unknown source codes are kept, with a warning, and fail later as
// error rows.
func (c *Config) InstrumentRefs() ([]fetcher.InstrumentRef, error) {
	refs := make([]fetcher.InstrumentRef, 0, len(c.Instruments))
	for _, inst := range c.Instruments {
		id := strings.TrimSpace(inst.Identifier)
		if id == "" {
			continue
		}
		refs = append(refs, fetcher.InstrumentRef{Source: source.ParseCode(inst.Source), Identifier: id})
	}

	if c.FundsFile != "" {
		fromFile, err := ReadInstruments(c.FundsFile)
		switch {
		case errors.Is(err, os.ErrNotExist) && len(refs) > 0:
		case err != nil:
			return nil, err
		default:
			refs = append(refs, fromFile...)
		}
	}

	for _, ref := range refs {
		if !source.Known(string(ref.Source)) {
			slog.Warn("instrument has an unknown source code",
				"source", ref.Source,
				"identifier", ref.Identifier,
				"known", source.Codes())
		}
	}
	return refs, nil
}

// ReadInstruments parses an instrument list file. Each line holds
// "<source>,<identifier>", split on the first comma. Blank lines and lines
// starting with # are skipped. Source codes are upper-cased but not checked,
// so unknown sources surface later as error rows.
func ReadInstruments(path string) ([]fetcher.InstrumentRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open instrument list: %w", err)
	}
	defer f.Close()

	var refs []fetcher.InstrumentRef
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		code, id, ok := strings.Cut(line, ",")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("%s:%d: expected <source>,<identifier>, got %q", path, lineNo, line)
		}
		refs = append(refs, fetcher.InstrumentRef{Source: source.ParseCode(code), Identifier: id})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read instrument list: %w", err)
	}
	return refs, nil
}
