package fetcher

import (
	"fmt"
	"time"

	"fundprice/internal/source"
)

// DateLayout is the calendar-day format used for FetchedAt and history rows.
const DateLayout = "2006-01-02"

// ErrorPrefix starts every failed price value. Downstream consumers parse it,
// so it must not change.
const ErrorPrefix = "Error: "

// InstrumentRef names one instrument as configured: a source code and the
// identifier in that source's addressing scheme.
type InstrumentRef struct {
	Source     source.Code
	Identifier string
}

func (r InstrumentRef) String() string {
	return fmt.Sprintf("%s,%s", r.Source, r.Identifier)
}

// Outcome is the result of acquiring one instrument's price.
//
// Value is the price string on success. On failure it holds ErrorPrefix
// followed by the error message and Err is set.
type Outcome struct {
	Instrument InstrumentRef
	Value      string
	Err        *FetchError
	FetchedAt  string
	CapturedAt time.Time
}

// Failed reports whether the acquisition failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// NewOutcome builds a successful outcome captured at now.
func NewOutcome(ref InstrumentRef, value string, now time.Time) Outcome {
	return Outcome{
		Instrument: ref,
		Value:      value,
		FetchedAt:  now.Format(DateLayout),
		CapturedAt: now,
	}
}

// NewErrorOutcome builds a failed outcome captured at now.
func NewErrorOutcome(ref InstrumentRef, err *FetchError, now time.Time) Outcome {
	return Outcome{
		Instrument: ref,
		Value:      FormatError(err),
		Err:        err,
		FetchedAt:  now.Format(DateLayout),
		CapturedAt: now,
	}
}

// FormatError renders err in the persisted error convention.
func FormatError(err error) string {
	return ErrorPrefix + err.Error()
}
