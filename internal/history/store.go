package history

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"fundprice/internal/fetcher"
)

const (
	historyBase = "prices_history"
	latestBase  = "latest_prices"
)

// Store persists history and latest snapshots in a directory.
type Store struct {
	dir        string
	codec      Codec
	keyMode    KeyMode
	priceFiles bool

	// mu serializes Commit so the read-merge-write sequence has one writer.
	mu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyMode sets how rows are keyed for deduplication.
func WithKeyMode(mode KeyMode) StoreOption {
	return func(s *Store) {
		s.keyMode = mode
	}
}

// WithPriceFiles toggles the per-instrument latest_<id>.price files.
func WithPriceFiles(enabled bool) StoreOption {
	return func(s *Store) {
		s.priceFiles = enabled
	}
}

// NewStore creates a store in dir. A nil codec means CSV.
func NewStore(dir string, codec Codec, opts ...StoreOption) *Store {
	if codec == nil {
		codec = CSVCodec{}
	}
	s := &Store{
		dir:        dir,
		codec:      codec,
		keyMode:    KeyComposite,
		priceFiles: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HistoryPath is the cumulative history file.
func (s *Store) HistoryPath() string {
	return filepath.Join(s.dir, historyBase+"."+s.codec.Extension())
}

// LatestPath is the latest snapshot file.
func (s *Store) LatestPath() string {
	return filepath.Join(s.dir, latestBase+"."+s.codec.Extension())
}

// PriceFilePath is the single-value file for one identifier.
func (s *Store) PriceFilePath(identifier string) string {
	return filepath.Join(s.dir, "latest_"+sanitize(identifier)+".price")
}

// Load reads the full history. A missing file is an empty history.
func (s *Store) Load() ([]Record, error) {
	records, err := s.codec.Read(s.HistoryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return records, nil
}

// Commit merges batch into the stored history and writes history, latest
// snapshot and price files. The merge is computed completely before anything
// is written, and each file is replaced by rename, so a failure leaves every
// file either old or new, never partial.
func (s *Store) Commit(batch []fetcher.Outcome) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Load()
	if err != nil {
		return Result{}, err
	}

	res := Merge(existing, batch, s.keyMode)

	if err := s.replace(s.HistoryPath(), func(tmp string) error {
		return s.codec.Write(tmp, res.History)
	}); err != nil {
		return Result{}, fmt.Errorf("failed to write history: %w", err)
	}

	if err := s.replace(s.LatestPath(), func(tmp string) error {
		return s.codec.Write(tmp, res.Latest)
	}); err != nil {
		return Result{}, fmt.Errorf("failed to write latest prices: %w", err)
	}

	if s.priceFiles {
		for _, rec := range res.Latest {
			data := []byte(rec.Price + "\n")
			if err := s.replace(s.PriceFilePath(rec.Fund), func(tmp string) error {
				return os.WriteFile(tmp, data, 0o644)
			}); err != nil {
				return Result{}, fmt.Errorf("failed to write price file for %s: %w", rec.Fund, err)
			}
		}
	}

	slog.Info("history committed",
		"path", s.HistoryPath(),
		"rows", len(res.History),
		"appended", res.Appended,
		"replaced", res.Replaced)

	return res, nil
}

// replace writes a sibling temp file with write and renames it over path.
func (s *Store) replace(path string, write func(tmp string) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")

func sanitize(identifier string) string {
	name := fileNameReplacer.Replace(identifier)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return name
}
