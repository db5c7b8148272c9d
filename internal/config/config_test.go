package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fundprice/internal/fetcher"
	"fundprice/internal/source"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test. Viper treats empty variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "FUNDS_FILE", "DATA_DIR", "OUTPUT_FORMAT", "OUTPUT_PRICE_FILES",
		"HISTORY_KEY_MODE", "WEB_RENDERER", "WEB_NAVIGATION_TIMEOUT", "WEB_WAIT_TIMEOUT",
		"WEB_USER_AGENT", "API_PROVIDER", "API_TIMEOUT", "HTTP_RETRY_COUNT",
		"ALPHAVANTAGE_API_KEY", "YAHOO_BASE_URL", "ALPHAVANTAGE_BASE_URL",
		"LOG_LEVEL", "LOG_FORMAT",
		"RATE_LIMIT_FT", "RATE_LIMIT_MS", "RATE_LIMIT_GF", "RATE_LIMIT_YH",
	} {
		t.Setenv(key, "")
	}
	// Point at an empty file so no config.yaml on the host is picked up.
	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("{}\n"), 0o644))
	t.Setenv("CONFIG_FILE", empty)
}

func TestLoad_WithDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "funds.txt", cfg.FundsFile)
	require.Equal(t, "data", cfg.DataDir)
	require.Equal(t, "csv", cfg.Output.Format)
	require.True(t, cfg.Output.PriceFiles)
	require.Equal(t, "composite", cfg.History.KeyMode)
	require.Equal(t, "chrome", cfg.Web.Renderer)
	require.Equal(t, 30*time.Second, cfg.Web.NavigationTimeout)
	require.Equal(t, 60*time.Second, cfg.Web.WaitTimeout)
	require.Equal(t, "yahoo", cfg.API.Provider)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
	require.Equal(t, 0, cfg.HTTP.RetryCount)
	require.Equal(t, "https://query2.finance.yahoo.com", cfg.YahooBaseURL)
	require.Equal(t, "https://www.alphavantage.co/query", cfg.AlphavantageBaseURL)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.RateLimits())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)

	envVars := map[string]string{
		"FUNDS_FILE":             "/etc/funds.txt",
		"DATA_DIR":               "/var/lib/prices",
		"OUTPUT_FORMAT":          "parquet",
		"OUTPUT_PRICE_FILES":     "false",
		"HISTORY_KEY_MODE":       "identifier",
		"WEB_RENDERER":           "http",
		"WEB_NAVIGATION_TIMEOUT": "5s",
		"WEB_WAIT_TIMEOUT":       "10s",
		"API_PROVIDER":           "alphavantage",
		"ALPHAVANTAGE_API_KEY":   "test_alphavantage_key",
		"ALPHAVANTAGE_BASE_URL":  "https://test.alphavantage.co",
		"HTTP_RETRY_COUNT":       "2",
		"RATE_LIMIT_FT":          "0.5",
		"LOG_FORMAT":             "json",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "/etc/funds.txt", cfg.FundsFile)
	require.Equal(t, "/var/lib/prices", cfg.DataDir)
	require.Equal(t, "parquet", cfg.Output.Format)
	require.False(t, cfg.Output.PriceFiles)
	require.Equal(t, "identifier", cfg.History.KeyMode)
	require.Equal(t, "http", cfg.Web.Renderer)
	require.Equal(t, 5*time.Second, cfg.Web.NavigationTimeout)
	require.Equal(t, 10*time.Second, cfg.Web.WaitTimeout)
	require.Equal(t, "alphavantage", cfg.API.Provider)
	require.Equal(t, "test_alphavantage_key", cfg.AlphavantageAPIKey)
	require.Equal(t, "https://test.alphavantage.co", cfg.AlphavantageBaseURL)
	require.Equal(t, 2, cfg.HTTP.RetryCount)
	require.Equal(t, map[source.Code]float64{source.FT: 0.5}, cfg.RateLimits())
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
data_dir: /srv/prices
instruments:
  - source: ft
    identifier: GB00B4PQW151:GBP
  - source: YH
    identifier: AAPL
web:
  renderer: http
rate_limit:
  ms: 1
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATA_DIR", "/override")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "/override", cfg.DataDir, "environment wins over file")
	require.Equal(t, "http", cfg.Web.Renderer)
	require.Equal(t, map[source.Code]float64{source.MS: 1}, cfg.RateLimits())
	require.Equal(t, []InstrumentConfig{
		{Source: "ft", Identifier: "GB00B4PQW151:GBP"},
		{Source: "YH", Identifier: "AAPL"},
	}, cfg.Instruments)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "alphavantage without key",
			env:  map[string]string{"API_PROVIDER": "alphavantage"},
			want: "ALPHAVANTAGE_API_KEY",
		},
		{
			name: "unknown provider",
			env:  map[string]string{"API_PROVIDER": "bloomberg"},
			want: `API_PROVIDER "bloomberg"`,
		},
		{
			name: "unknown format",
			env:  map[string]string{"OUTPUT_FORMAT": "xlsx"},
			want: `OUTPUT_FORMAT "xlsx"`,
		},
		{
			name: "unknown key mode",
			env:  map[string]string{"HISTORY_KEY_MODE": "isin"},
			want: `HISTORY_KEY_MODE "isin"`,
		},
		{
			name: "unknown renderer",
			env:  map[string]string{"WEB_RENDERER": "firefox"},
			want: `WEB_RENDERER "firefox"`,
		},
		{
			name: "negative timeout",
			env:  map[string]string{"WEB_WAIT_TIMEOUT": "-1s"},
			want: "timeouts must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := Load()
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestReadInstruments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "funds.txt")
	content := "# managed funds\n" +
		"FT,GB00B4PQW151:GBP\n" +
		"\n" +
		"  ms , F0GBR04S23\n" +
		"YH,AAPL\n" +
		"ZZ,whatever,with,commas\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	refs, err := ReadInstruments(path)
	require.NoError(t, err)

	require.Equal(t, []fetcher.InstrumentRef{
		{Source: source.FT, Identifier: "GB00B4PQW151:GBP"},
		{Source: source.MS, Identifier: "F0GBR04S23"},
		{Source: source.YH, Identifier: "AAPL"},
		{Source: "ZZ", Identifier: "whatever,with,commas"},
	}, refs)
}

func TestReadInstruments_BadLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "funds.txt")
	require.NoError(t, os.WriteFile(path, []byte("FT,ID1\nAAPL\n"), 0o644))

	_, err := ReadInstruments(path)
	require.ErrorContains(t, err, ":2: expected <source>,<identifier>")
}

func TestInstrumentRefs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "funds.txt")
	require.NoError(t, os.WriteFile(path, []byte("GF,BRK.B:NYSE\n"), 0o644))

	t.Run("config then file", func(t *testing.T) {
		cfg := &Config{
			FundsFile:   path,
			Instruments: []InstrumentConfig{{Source: "yh", Identifier: "AAPL"}},
		}
		refs, err := cfg.InstrumentRefs()
		require.NoError(t, err)
		require.Equal(t, []fetcher.InstrumentRef{
			{Source: source.YH, Identifier: "AAPL"},
			{Source: source.GF, Identifier: "BRK.B:NYSE"},
		}, refs)
	})

	t.Run("missing file with config instruments", func(t *testing.T) {
		cfg := &Config{
			FundsFile:   filepath.Join(dir, "absent.txt"),
			Instruments: []InstrumentConfig{{Source: "YH", Identifier: "AAPL"}},
		}
		refs, err := cfg.InstrumentRefs()
		require.NoError(t, err)
		require.Len(t, refs, 1)
	})

	t.Run("missing file alone", func(t *testing.T) {
		cfg := &Config{FundsFile: filepath.Join(dir, "absent.txt")}
		_, err := cfg.InstrumentRefs()
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("nothing configured", func(t *testing.T) {
		refs, err := (&Config{}).InstrumentRefs()
		require.NoError(t, err)
		require.Empty(t, refs)
	})

	t.Run("unknown source kept", func(t *testing.T) {
		cfg := &Config{Instruments: []InstrumentConfig{{Source: "zz", Identifier: "ID0"}}}
		refs, err := cfg.InstrumentRefs()
		require.NoError(t, err)
		require.Equal(t, []fetcher.InstrumentRef{{Source: "ZZ", Identifier: "ID0"}}, refs)
	})
}
