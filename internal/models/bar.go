package models

import (
	"fmt"
	"time"
)

// Bar is one OHLC(V) price observation. Time is an integer epoch offset
// whose unit (seconds or milliseconds) is part of the run configuration,
// not the bar itself; the transform resolves it to an instant.
type Bar struct {
	Time   int64
	Open   Cell
	High   Cell
	Low    Cell
	Close  Cell
	Volume Cell
}

// Instant interprets the bar's epoch offset in the given unit and returns
// the UTC instant it denotes.
func (b Bar) Instant(unit TimestampUnit) time.Time {
	if unit == UnitMilliseconds {
		return time.UnixMilli(b.Time).UTC()
	}
	return time.Unix(b.Time, 0).UTC()
}

// String implements fmt.Stringer for diagnostics.
func (b Bar) String() string {
	return fmt.Sprintf("Bar{Time: %d, O: %s, H: %s, L: %s, C: %s}",
		b.Time, b.Open, b.High, b.Low, b.Close)
}

// TimestampUnit names the unit of the raw epoch offsets in the input.
type TimestampUnit string

const (
	UnitSeconds      TimestampUnit = "seconds"
	UnitMilliseconds TimestampUnit = "milliseconds"
)

// ParseTimestampUnit validates a configured unit name.
func ParseTimestampUnit(s string) (TimestampUnit, error) {
	switch TimestampUnit(s) {
	case UnitSeconds:
		return UnitSeconds, nil
	case UnitMilliseconds:
		return UnitMilliseconds, nil
	default:
		return "", fmt.Errorf("unsupported timestamp unit %q (want %q or %q)", s, UnitSeconds, UnitMilliseconds)
	}
}

// Row is one formatted output record. All six fields are final display
// strings; prices are either a 3-decimal comma-separated number, the
// literal "GAP", or empty.
type Row struct {
	Date  string
	Time  string
	Open  string
	High  string
	Low   string
	Close string
}

// ColumnHeaders returns the output column names in their mandatory order.
func ColumnHeaders() []string {
	return []string{"Date", "Time", "OPEN", "HIGH", "LOW", "CLOSE"}
}

// Columns returns the row's values in header order.
func (r Row) Columns() []string {
	return []string{r.Date, r.Time, r.Open, r.High, r.Low, r.Close}
}
