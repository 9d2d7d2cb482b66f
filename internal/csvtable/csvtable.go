// Package csvtable reads and writes the comma-separated intermediate
// representation of price bars exchanged between the fetcher and the
// transform: columns time, open, high, low, close and optionally volume,
// in any order, with extra columns tolerated and ignored.
package csvtable

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/mserhatbalik/price-export/internal/errors"
	"github.com/mserhatbalik/price-export/internal/models"
)

var requiredColumns = []string{"time", "open", "high", "low", "close"}

// ReadResult carries the parsed bars plus how many rows were discarded for
// unparseable timestamps. Dropped rows are non-fatal; the run continues
// with fewer rows.
type ReadResult struct {
	Bars    []models.Bar
	Dropped int
}

// Read parses the CSV at path into bars. It fails with
// KindMissingInputFile when the file does not exist and
// KindMissingRequiredColumn (listing every absent name) when the header is
// incomplete. Rows whose time field is not an integer are dropped and
// counted, never fatal on their own.
func Read(path string, logger *slog.Logger) (*ReadResult, error) {
	const op = "csvtable.Read"

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.E(apperrors.KindMissingInputFile, op, err)
		}
		return nil, apperrors.E(apperrors.KindUnclassified, op, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return &ReadResult{}, nil
	}
	if err != nil {
		return nil, apperrors.E(apperrors.KindUnclassified, op, fmt.Errorf("failed to read CSV header: %w", err))
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.Errorf(apperrors.KindMissingRequiredColumn, op,
			"missing expected columns in CSV: %s", strings.Join(missing, ", "))
	}

	volumeIdx, hasVolume := index["volume"]

	result := &ReadResult{}
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.E(apperrors.KindUnclassified, op, fmt.Errorf("failed to read CSV row %d: %w", line, err))
		}

		ts, err := strconv.ParseInt(field(record, index["time"]), 10, 64)
		if err != nil {
			result.Dropped++
			if logger != nil {
				logger.Warn("dropping row with unparseable timestamp",
					"line", line,
					"value", field(record, index["time"]))
			}
			continue
		}

		bar := models.Bar{
			Time:  ts,
			Open:  parseCell(field(record, index["open"])),
			High:  parseCell(field(record, index["high"])),
			Low:   parseCell(field(record, index["low"])),
			Close: parseCell(field(record, index["close"])),
		}
		if hasVolume {
			bar.Volume = parseCell(field(record, volumeIdx))
		}
		result.Bars = append(result.Bars, bar)
	}

	return result, nil
}

// field returns the record value at idx, tolerating short rows.
func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseCell maps a raw price field to a tagged cell: empty or unparseable
// text becomes Missing.
func parseCell(s string) models.Cell {
	if s == "" {
		return models.Cell{}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return models.Cell{}
	}
	return models.NumericCell(v)
}

// Write serializes bars to the CSV at path with the canonical header
// time,open,high,low,close,volume. Non-numeric cells serialize as empty
// fields.
func Write(path string, bars []models.Bar) error {
	const op = "csvtable.Write"

	f, err := os.Create(path)
	if err != nil {
		return apperrors.E(apperrors.KindUnclassified, op, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return apperrors.E(apperrors.KindUnclassified, op, err)
	}
	for _, b := range bars {
		record := []string{
			strconv.FormatInt(b.Time, 10),
			cellField(b.Open),
			cellField(b.High),
			cellField(b.Low),
			cellField(b.Close),
			cellField(b.Volume),
		}
		if err := w.Write(record); err != nil {
			return apperrors.E(apperrors.KindUnclassified, op, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.E(apperrors.KindUnclassified, op, err)
	}
	return nil
}

func cellField(c models.Cell) string {
	if v, ok := c.Decimal(); ok {
		return v.String()
	}
	return ""
}
