package history

import "fundprice/internal/fetcher"

// Result is the in-memory outcome of a merge.
type Result struct {
	// History is the full log to persist.
	History []Record
	// Latest holds one row per instrument from the merged batch only.
	Latest []Record
	// Appended and Replaced count how batch rows were applied to History.
	Appended int
	Replaced int
}

// Merge folds batch into existing and returns the new history and latest
// snapshot. Neither input is modified.
//
// A batch row whose (key, date) already exists replaces that row's price in
// place; any other row is appended. Rows the batch does not touch keep their
// values and relative order. If existing already holds duplicate (key, date)
// rows they are collapsed onto the first one, keeping the last price.
//
// In composite mode a row without a source (written before the Source column
// existed) matches the first batch row with the same identifier and date,
// and takes that row's source.
func Merge(existing []Record, batch []fetcher.Outcome, mode KeyMode) Result {
	res := Result{
		History: make([]Record, 0, len(existing)+len(batch)),
		Latest:  make([]Record, 0, len(batch)),
	}
	index := make(map[dayKey]int, len(existing)+len(batch))

	for _, r := range existing {
		k := dayKey{mode.Key(r.Source, r.Fund), r.Date}
		if i, ok := index[k]; ok {
			res.History[i].Price = r.Price
			continue
		}
		index[k] = len(res.History)
		res.History = append(res.History, r)
	}

	latest := make(map[string]int, len(batch))
	for _, o := range batch {
		rec := FromOutcome(o)
		key := mode.Key(rec.Source, rec.Fund)

		k := dayKey{key, rec.Date}
		i, ok := index[k]
		if !ok && mode == KeyComposite && rec.Source != "" {
			i, ok = adoptLegacy(&res, index, k, rec)
		}
		if ok {
			res.History[i].Price = rec.Price
			res.Replaced++
		} else {
			index[k] = len(res.History)
			res.History = append(res.History, rec)
			res.Appended++
		}

		if i, ok := latest[key]; ok {
			res.Latest[i] = rec
			continue
		}
		latest[key] = len(res.Latest)
		res.Latest = append(res.Latest, rec)
	}

	return res
}

// adoptLegacy looks up the source-less row for rec's identifier and date and,
// if present, re-keys it under k.
func adoptLegacy(res *Result, index map[dayKey]int, k dayKey, rec Record) (int, bool) {
	legacy := dayKey{KeyComposite.Key("", rec.Fund), rec.Date}
	i, ok := index[legacy]
	if !ok {
		return 0, false
	}
	delete(index, legacy)
	index[k] = i
	res.History[i].Source = rec.Source
	return i, true
}

// FromOutcome converts an outcome into its persisted row.
func FromOutcome(o fetcher.Outcome) Record {
	return Record{
		Fund:   o.Instrument.Identifier,
		Date:   o.FetchedAt,
		Price:  o.Value,
		Source: string(o.Instrument.Source),
	}
}
