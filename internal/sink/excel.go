// Package sink serializes transformed rows to an Excel workbook with a
// single named sheet. The workbook is written to a temporary file and
// renamed into place so a failed run never leaves a half-written output
// observable as valid.
package sink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/mserhatbalik/price-export/internal/errors"
	"github.com/mserhatbalik/price-export/internal/models"
)

// ExcelWriter writes row tables as .xlsx workbooks.
type ExcelWriter struct {
	logger *slog.Logger
}

// NewExcelWriter builds an Excel sink.
func NewExcelWriter(logger *slog.Logger) *ExcelWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelWriter{logger: logger}
}

// Write creates the workbook at path containing the header row and all
// data rows on the named sheet. Every value is written as a string; the
// formatting decisions were already made upstream.
func (w *ExcelWriter) Write(path, sheet string, rows []models.Row) error {
	const op = "sink.Write"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return apperrors.E(apperrors.KindUnclassified, op, fmt.Errorf("failed to name sheet: %w", err))
	}

	header := models.ColumnHeaders()
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return apperrors.E(apperrors.KindUnclassified, op, err)
	}

	for i, row := range rows {
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.E(apperrors.KindUnclassified, op, err)
		}
		values := row.Columns()
		rowCells := make([]interface{}, len(values))
		for j, v := range values {
			rowCells[j] = v
		}
		if err := f.SetSheetRow(sheet, anchor, &rowCells); err != nil {
			return apperrors.E(apperrors.KindUnclassified, op, err)
		}
	}

	if err := w.saveAtomic(f, path); err != nil {
		return apperrors.E(apperrors.KindUnclassified, op, err)
	}

	w.logger.Info("spreadsheet written", "path", path, "sheet", sheet, "rows", len(rows))
	return nil
}

// saveAtomic writes the workbook to a temp file in the target directory
// and renames it over path.
func (w *ExcelWriter) saveAtomic(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".price-export-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush workbook: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move workbook into place: %w", err)
	}
	return nil
}
