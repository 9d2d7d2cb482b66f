// Package pipeline orchestrates one price-export run: fetch bars from the
// provider, repair the series, write the spreadsheet. Each run is a
// single synchronous pass over an in-memory table; failures are mapped to
// the run error taxonomy at this level and never produce partial output.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mserhatbalik/price-export/internal/config"
	"github.com/mserhatbalik/price-export/internal/csvtable"
	apperrors "github.com/mserhatbalik/price-export/internal/errors"
	"github.com/mserhatbalik/price-export/internal/fetch"
	"github.com/mserhatbalik/price-export/internal/models"
	"github.com/mserhatbalik/price-export/internal/sink"
	"github.com/mserhatbalik/price-export/internal/transform"
)

// BarFetcher downloads bars from a market-data provider.
type BarFetcher interface {
	FetchBars(ctx context.Context, req fetch.Request) ([]models.Bar, error)
}

// RowSink serializes the transformed table.
type RowSink interface {
	Write(path, sheet string, rows []models.Row) error
}

// Pipeline wires the run stages together.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	fetcher BarFetcher
	sink    RowSink
}

// New builds a pipeline with the default collaborators: the Yahoo fetch
// client and the Excel sink.
func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	runLogger := logger.With("run_id", uuid.NewString())
	return &Pipeline{
		cfg:     cfg,
		logger:  runLogger,
		fetcher: fetch.NewClient(cfg.Fetch, runLogger),
		sink:    sink.NewExcelWriter(runLogger),
	}
}

// NewWithCollaborators builds a pipeline with explicit fetcher and sink,
// used by tests.
func NewWithCollaborators(cfg *config.Config, logger *slog.Logger, fetcher BarFetcher, rowSink RowSink) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		logger:  logger.With("run_id", uuid.NewString()),
		fetcher: fetcher,
		sink:    rowSink,
	}
}

// Fetch downloads bars for the configured symbol over the trailing window
// and writes the intermediate CSV. It returns the CSV path.
func (p *Pipeline) Fetch(ctx context.Context) (string, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -p.cfg.Fetch.WindowDays)

	p.logger.Info("downloading bars",
		"symbol", p.cfg.Fetch.Symbol,
		"interval", p.cfg.Fetch.Interval,
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"))

	bars, err := p.fetcher.FetchBars(ctx, fetch.Request{
		Symbol:   p.cfg.Fetch.Symbol,
		Start:    start,
		End:      end,
		Interval: p.cfg.Fetch.Interval,
	})
	if err != nil {
		return "", err
	}

	path := p.intermediatePath()
	if err := csvtable.Write(path, bars); err != nil {
		return "", err
	}

	p.logger.Info("bars saved", "path", path, "count", len(bars))
	return path, nil
}

// Convert reads the CSV at input, runs the transform and writes the
// spreadsheet. The output path is derived from the input when not
// configured explicitly.
func (p *Pipeline) Convert(ctx context.Context, input string) error {
	read, err := csvtable.Read(input, p.logger)
	if err != nil {
		return err
	}
	if read.Dropped > 0 {
		p.logger.Warn("rows dropped for unparseable timestamps", "dropped", read.Dropped)
	}

	loc, err := p.cfg.Transform.Location()
	if err != nil {
		return err
	}

	rows, err := transform.Run(read.Bars, transform.Options{
		Unit:     p.cfg.Transform.Unit(),
		Cadence:  p.cfg.Transform.Cadence(),
		Location: loc,
		Logger:   p.logger,
	})
	if err != nil {
		return err
	}

	output := p.cfg.Output.ResolveOutput(input)
	return p.sink.Write(output, p.cfg.Output.SheetName, rows)
}

// Export runs fetch then convert in one pass and removes the intermediate
// CSV on success.
func (p *Pipeline) Export(ctx context.Context) error {
	path, err := p.Fetch(ctx)
	if err != nil {
		return err
	}
	if err := p.Convert(ctx, path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		// The spreadsheet is complete; a leftover intermediate file is
		// only worth a warning.
		p.logger.Warn("failed to remove intermediate CSV", "path", path, "error", err)
	}
	return nil
}

// intermediatePath names the CSV between fetch and convert, derived from
// the symbol the way the filenames of this tool have always been derived:
// nq_15m_data.csv for NQ=F at 15m.
func (p *Pipeline) intermediatePath() string {
	symbol := strings.ToLower(strings.ReplaceAll(p.cfg.Fetch.Symbol, "=F", ""))
	symbol = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, symbol)
	return fmt.Sprintf("%s_%s_data.csv", symbol, p.cfg.Fetch.Interval)
}

// Describe renders a failure as the human-readable diagnostic the CLI
// prints, one message shape per error kind.
func Describe(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindMissingInputFile:
		return fmt.Sprintf("Error: the input file was not found: %v", err)
	case apperrors.KindMissingRequiredColumn:
		return fmt.Sprintf("Error: the input is missing required columns: %v", err)
	case apperrors.KindEmptyAfterNormalization:
		return fmt.Sprintf("Error: no rows with valid timestamps remained, nothing to export: %v", err)
	case apperrors.KindUnknownTimezone:
		return fmt.Sprintf("Error: the configured timezone is not a known IANA zone: %v", err)
	case apperrors.KindNoData:
		return fmt.Sprintf("Error: the provider returned no data for the requested period: %v", err)
	default:
		return fmt.Sprintf("Error: the run failed: %v", err)
	}
}
