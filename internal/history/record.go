// Package history keeps the cumulative per-day price log and the latest
// snapshot on disk.
package history

import (
	"fmt"
	"strings"
)

// Record is one persisted price row.
type Record struct {
	Fund   string `json:"fund" parquet:"fund"`
	Date   string `json:"date" parquet:"date"`
	Price  string `json:"price" parquet:"price"`
	Source string `json:"source,omitempty" parquet:"source"`
}

// KeyMode selects how a record's instrument key is derived.
type KeyMode int

const (
	// KeyComposite keys rows by source and identifier, so equal identifiers
	// from different sources stay apart.
	KeyComposite KeyMode = iota
	// KeyIdentifier keys rows by identifier alone. Stores written before the
	// Source column existed need this mode to keep deduplicating.
	KeyIdentifier
)

// ParseKeyMode parses "composite" or "identifier". Empty means composite.
func ParseKeyMode(s string) (KeyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "composite":
		return KeyComposite, nil
	case "identifier":
		return KeyIdentifier, nil
	default:
		return KeyComposite, fmt.Errorf("unknown history key mode %q (use composite or identifier)", s)
	}
}

func (m KeyMode) String() string {
	if m == KeyIdentifier {
		return "identifier"
	}
	return "composite"
}

// Key returns the instrument key for a source code and identifier.
func (m KeyMode) Key(source, fund string) string {
	if m == KeyIdentifier {
		return fund
	}
	return strings.ToUpper(source) + "|" + fund
}

type dayKey struct {
	instrument string
	date       string
}
