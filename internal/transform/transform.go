// Package transform implements the gap-filling and formatting transform:
// a linear pipeline over an in-memory table of bars. Each stage consumes
// the whole table and produces a whole table; there is no streaming and no
// partial emission.
//
//	Normalize -> Sort -> Detect-and-Fill -> Format -> Assemble
//
// Timestamps are normalized from epoch offsets to instants in the target
// civil timezone under full IANA rules, the series is reindexed onto a
// regular grid at the configured cadence, and every price is rendered as a
// fixed-format display string.
package transform

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	apperrors "github.com/mserhatbalik/price-export/internal/errors"
	"github.com/mserhatbalik/price-export/internal/models"
)

// Options carries the transform parameters, supplied by the caller as part
// of the immutable run configuration.
type Options struct {
	Unit     models.TimestampUnit
	Cadence  time.Duration
	Location *time.Location
	Logger   *slog.Logger
}

// localBar is a bar resolved to an instant in the target timezone. The raw
// epoch, the UTC instant and the local instant are working data only; none
// of them survive into the output.
type localBar struct {
	at    time.Time
	open  models.Cell
	high  models.Cell
	low   models.Cell
	close models.Cell
}

// Run executes the full transform. An empty input table is
// KindEmptyAfterNormalization: the run contributes no output.
func Run(bars []models.Bar, opts Options) ([]models.Row, error) {
	const op = "transform.Run"

	local := normalize(bars, opts.Unit, opts.Location)
	if len(local) == 0 {
		return nil, apperrors.Errorf(apperrors.KindEmptyAfterNormalization, op,
			"no valid timestamps found after conversion")
	}

	// Stable so duplicate instants keep input order; the reindex then
	// keeps the last occurrence.
	sort.SliceStable(local, func(i, j int) bool {
		return local[i].at.Before(local[j].at)
	})

	filled := fillGaps(local, opts.Cadence)

	if opts.Logger != nil {
		opts.Logger.Info("gap fill completed",
			"input_rows", len(local),
			"grid_rows", len(filled),
			"gap_rows", len(filled)-len(local))
	}

	rows := make([]models.Row, len(filled))
	for i, b := range filled {
		rows[i] = assemble(b)
	}
	return rows, nil
}

// normalize resolves each bar's epoch offset to an instant in the target
// timezone.
func normalize(bars []models.Bar, unit models.TimestampUnit, loc *time.Location) []localBar {
	local := make([]localBar, 0, len(bars))
	for _, b := range bars {
		local = append(local, localBar{
			at:    b.Instant(unit).In(loc),
			open:  b.Open,
			high:  b.High,
			low:   b.Low,
			close: b.Close,
		})
	}
	return local
}

// fillGaps reindexes the sorted series onto the closed grid
// [first, last] at the cadence. A slot with an exact-match input bar keeps
// its cells; a slot with none gets all four OHLC cells set to the gap
// sentinel. Input instants that do not land exactly on a grid slot are
// dropped, matching the reindex semantics this tool has always had.
// Duplicate instants keep the last occurrence.
func fillGaps(sorted []localBar, cadence time.Duration) []localBar {
	byUnix := make(map[int64]localBar, len(sorted))
	for _, b := range sorted {
		byUnix[b.at.Unix()] = b
	}

	first := sorted[0].at
	last := sorted[len(sorted)-1].at

	filled := make([]localBar, 0, int(last.Sub(first)/cadence)+1)
	for slot := first; !slot.After(last); slot = slot.Add(cadence) {
		if b, ok := byUnix[slot.Unix()]; ok {
			b.at = slot
			filled = append(filled, b)
			continue
		}
		filled = append(filled, localBar{
			at:    slot,
			open:  models.GapCell(),
			high:  models.GapCell(),
			low:   models.GapCell(),
			close: models.GapCell(),
		})
	}
	return filled
}

// assemble produces the final output record for one grid slot: exactly the
// columns Date, Time, OPEN, HIGH, LOW, CLOSE, all as display strings.
func assemble(b localBar) models.Row {
	return models.Row{
		Date:  b.at.Format("02/01/2006"),
		Time:  b.at.Format("15:04:05"),
		Open:  FormatPrice(b.open),
		High:  FormatPrice(b.high),
		Low:   FormatPrice(b.low),
		Close: FormatPrice(b.close),
	}
}

// FormatPrice renders a price cell as its display string: numeric values
// are rounded to exactly 3 decimal digits using banker's rounding
// (round-half-to-even) with the decimal point replaced by a comma, the gap
// sentinel renders as the literal GAP, and a missing value renders empty.
func FormatPrice(c models.Cell) string {
	switch c.Kind() {
	case models.CellGap:
		return "GAP"
	case models.CellNumeric:
		v, _ := c.Decimal()
		return strings.Replace(v.RoundBank(3).StringFixed(3), ".", ",", 1)
	default:
		return ""
	}
}
