package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"fundprice/internal/fetcher"
	"fundprice/internal/source"
)

func TestStore_CommitTwiceSameDay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir, CSVCodec{})
	batch := []fetcher.Outcome{
		outcome(source.FT, "GB00B4PQW151:GBP", "2024-01-15", "1.2345"),
		outcome(source.YH, "AAPL", "2024-01-15", "185.50"),
	}

	_, err := store.Commit(batch)
	require.NoError(t, err)
	first, err := os.ReadFile(store.HistoryPath())
	require.NoError(t, err)

	res, err := store.Commit(batch)
	require.NoError(t, err)
	require.Equal(t, 0, res.Appended)
	require.Equal(t, 2, res.Replaced)

	second, err := os.ReadFile(store.HistoryPath())
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
	require.Equal(t,
		"Fund,Date,Price,Source\n"+
			"GB00B4PQW151:GBP,2024-01-15,1.2345,FT\n"+
			"AAPL,2024-01-15,185.50,YH\n",
		string(second))
}

func TestStore_CommitWritesLatestAndPriceFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir, nil)
	_, err := store.Commit([]fetcher.Outcome{
		outcome(source.MS, "F0GBR04S23", "2024-01-14", "9.00"),
	})
	require.NoError(t, err)

	ref := fetcher.InstrumentRef{Source: source.GF, Identifier: "BRK/B"}
	failed := fetcher.NewErrorOutcome(ref, fetcher.NewNotFoundError("element not found"), mustDay(t, "2024-01-15"))
	_, err = store.Commit([]fetcher.Outcome{
		outcome(source.MS, "F0GBR04S23", "2024-01-15", "9.10"),
		failed,
	})
	require.NoError(t, err)

	latest, err := CSVCodec{}.Read(store.LatestPath())
	require.NoError(t, err)
	want := []Record{
		{Fund: "F0GBR04S23", Date: "2024-01-15", Price: "9.10", Source: "MS"},
		{Fund: "BRK/B", Date: "2024-01-15", Price: "Error: element not found", Source: "GF"},
	}
	require.Equal(t, "", cmp.Diff(want, latest))

	history, err := store.Load()
	require.NoError(t, err)
	require.Len(t, history, 3)

	price, err := os.ReadFile(filepath.Join(dir, "latest_F0GBR04S23.price"))
	require.NoError(t, err)
	require.Equal(t, "9.10\n", string(price))

	price, err = os.ReadFile(filepath.Join(dir, "latest_BRK_B.price"))
	require.NoError(t, err)
	require.Equal(t, "Error: element not found\n", string(price))
}

func TestStore_PriceFilesDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(dir, CSVCodec{}, WithPriceFiles(false))
	_, err := store.Commit([]fetcher.Outcome{outcome(source.YH, "AAPL", "2024-01-15", "1")})
	require.NoError(t, err)

	_, err = os.Stat(store.PriceFilePath("AAPL"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_LoadsLegacyThreeColumnCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	legacy := "Fund,Date,Price\n" +
		"AAPL,2024-01-14,180.00\n" +
		"AAPL,2024-01-15,181.00\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices_history.csv"), []byte(legacy), 0o644))

	store := NewStore(dir, CSVCodec{}, WithKeyMode(KeyIdentifier))
	res, err := store.Commit([]fetcher.Outcome{outcome(source.YH, "AAPL", "2024-01-15", "185.50")})
	require.NoError(t, err)
	require.Equal(t, 1, res.Replaced)

	history, err := store.Load()
	require.NoError(t, err)
	want := []Record{
		{Fund: "AAPL", Date: "2024-01-14", Price: "180.00"},
		{Fund: "AAPL", Date: "2024-01-15", Price: "185.50"},
	}
	require.Equal(t, "", cmp.Diff(want, history))
}

func TestStore_LegacyCSVInCompositeMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	legacy := "Fund,Date,Price\n" +
		"AAPL,2024-01-15,181.00\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices_history.csv"), []byte(legacy), 0o644))

	store := NewStore(dir, CSVCodec{})
	_, err := store.Commit([]fetcher.Outcome{outcome(source.YH, "AAPL", "2024-01-15", "185.50")})
	require.NoError(t, err)

	history, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "", cmp.Diff([]Record{
		{Fund: "AAPL", Date: "2024-01-15", Price: "185.50", Source: "YH"},
	}, history))
}

func TestStore_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		ext    string
	}{
		{"csv", "csv"},
		{"json", "json"},
		{"parquet", "parquet"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			codec := NewCodec(tt.format)
			require.NotNil(t, codec)

			dir := t.TempDir()
			store := NewStore(dir, codec)
			require.Equal(t, filepath.Join(dir, "prices_history."+tt.ext), store.HistoryPath())

			_, err := store.Commit([]fetcher.Outcome{outcome(source.FT, "ID1", "2024-01-14", "1.0")})
			require.NoError(t, err)
			_, err = store.Commit([]fetcher.Outcome{
				outcome(source.FT, "ID1", "2024-01-15", "1.1"),
				outcome(source.FT, "ID1", "2024-01-15", "1.2"),
			})
			require.NoError(t, err)

			history, err := store.Load()
			require.NoError(t, err)
			want := []Record{
				{Fund: "ID1", Date: "2024-01-14", Price: "1.0", Source: "FT"},
				{Fund: "ID1", Date: "2024-01-15", Price: "1.2", Source: "FT"},
			}
			require.Equal(t, "", cmp.Diff(want, history))
		})
	}
}

func TestNewCodec_Unknown(t *testing.T) {
	require.Nil(t, NewCodec("xlsx"))
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	records, err := NewStore(t.TempDir(), JSONCodec{}).Load()
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestStore_LoadMalformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices_history.csv"), []byte("Name,Value\nx,y\n"), 0o644))

	_, err := NewStore(dir, CSVCodec{}).Commit(nil)
	require.ErrorIs(t, err, ErrMalformed)
}

// failingCodec fails every write after the first allowed ones.
type failingCodec struct {
	CSVCodec
	allowed *int
}

func (c failingCodec) Write(path string, records []Record) error {
	if *c.allowed <= 0 {
		return errors.New("disk full")
	}
	*c.allowed--
	return c.CSVCodec.Write(path, records)
}

func TestStore_FailedWriteKeepsPreviousFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewStore(dir, CSVCodec{}).Commit([]fetcher.Outcome{
		outcome(source.FT, "ID1", "2024-01-14", "1.0"),
	})
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(dir, "prices_history.csv"))
	require.NoError(t, err)

	allowed := 0
	store := NewStore(dir, failingCodec{allowed: &allowed})
	_, err = store.Commit([]fetcher.Outcome{outcome(source.FT, "ID1", "2024-01-15", "1.1")})
	require.ErrorContains(t, err, "disk full")

	after, err := os.ReadFile(store.HistoryPath())
	require.NoError(t, err)
	require.Equal(t, string(before), string(after))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp", "temp file left behind")
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"AAPL":         "AAPL",
		"BRK/B":        "BRK_B",
		`a\b`:          "a_b",
		"..":           "_..",
		"":             "_",
		"GB00:GBP":     "GB00:GBP",
		"../../passwd": ".._.._passwd",
	}
	for in, want := range tests {
		require.Equal(t, want, sanitize(in), in)
	}
}

func mustDay(t *testing.T, date string) time.Time {
	t.Helper()
	day, err := time.Parse(fetcher.DateLayout, date)
	require.NoError(t, err)
	return day.Add(12 * time.Hour)
}
