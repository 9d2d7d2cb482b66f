// Package models provides the data structures for intraday price bars and
// the tabular rows produced for spreadsheet output.
package models

import "github.com/shopspring/decimal"

// CellKind discriminates the states a price cell can be in.
type CellKind int

const (
	// CellMissing marks a cell with no usable value. It is the zero value,
	// so an unset Cell is Missing.
	CellMissing CellKind = iota
	// CellNumeric marks a cell holding a decimal price.
	CellNumeric
	// CellGap marks a cell synthesized for a grid slot with no source bar.
	CellGap
)

// String returns the string representation of the cell kind.
func (k CellKind) String() string {
	switch k {
	case CellMissing:
		return "missing"
	case CellNumeric:
		return "numeric"
	case CellGap:
		return "gap"
	default:
		return "unknown"
	}
}

// Cell is a tagged price value: exactly one of numeric, gap or missing.
// The tag makes the formatter total without runtime type inspection.
type Cell struct {
	kind  CellKind
	value decimal.Decimal
}

// NumericCell returns a cell holding the given decimal value.
func NumericCell(v decimal.Decimal) Cell {
	return Cell{kind: CellNumeric, value: v}
}

// GapCell returns the sentinel cell used for synthesized grid slots.
func GapCell() Cell {
	return Cell{kind: CellGap}
}

// Kind returns the discriminator tag of the cell.
func (c Cell) Kind() CellKind {
	return c.kind
}

// Decimal returns the numeric value and true when the cell is numeric.
func (c Cell) Decimal() (decimal.Decimal, bool) {
	if c.kind != CellNumeric {
		return decimal.Zero, false
	}
	return c.value, true
}

// IsGap reports whether the cell is the gap sentinel.
func (c Cell) IsGap() bool {
	return c.kind == CellGap
}

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool {
	return c.kind == CellMissing
}

// String returns a human-readable representation used in logs and tests.
func (c Cell) String() string {
	switch c.kind {
	case CellNumeric:
		return c.value.String()
	case CellGap:
		return "GAP"
	default:
		return ""
	}
}
