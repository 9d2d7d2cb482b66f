package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mserhatbalik/price-export/internal/config"
	apperrors "github.com/mserhatbalik/price-export/internal/errors"
	"github.com/mserhatbalik/price-export/internal/fetch"
	"github.com/mserhatbalik/price-export/internal/models"
	"github.com/mserhatbalik/price-export/internal/sink"
)

type stubFetcher struct {
	bars []models.Bar
	err  error
}

func (s *stubFetcher) FetchBars(ctx context.Context, req fetch.Request) ([]models.Bar, error) {
	return s.bars, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scenarioBars() []models.Bar {
	cell := func(s string) models.Cell { return models.NumericCell(decimal.RequireFromString(s)) }
	return []models.Bar{
		{Time: 1700000000, Open: cell("100.1234"), High: cell("101"), Low: cell("99.5"), Close: cell("100.5")},
		{Time: 1700001800, Open: cell("102"), High: cell("103"), Low: cell("101"), Close: cell("102.25")},
	}
}

func scenarioCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "nq_15m_data.csv")
	content := "time,open,high,low,close,volume\n" +
		"1700000000,100.1234,101,99.5,100.5,1000\n" +
		"1700001800,102,103,101,102.25,2000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConvertProducesFormattedWorkbook(t *testing.T) {
	dir := t.TempDir()
	input := scenarioCSV(t, dir)

	cfg := config.Default()
	p := NewWithCollaborators(cfg, discardLogger(), &stubFetcher{}, sink.NewExcelWriter(nil))

	require.NoError(t, p.Convert(context.Background(), input))

	output := filepath.Join(dir, "nq_15m_data.xlsx")
	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("PriceData_NY")
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + two bars + one gap row

	assert.Equal(t, []string{"14/11/2023", "17:28:20", "GAP", "GAP", "GAP", "GAP"}, rows[2])
}

func TestConvertMissingInputProducesNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "absent.csv")

	cfg := config.Default()
	p := NewWithCollaborators(cfg, discardLogger(), &stubFetcher{}, sink.NewExcelWriter(nil))

	err := p.Convert(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindMissingInputFile))

	_, statErr := os.Stat(filepath.Join(dir, "absent.xlsx"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestConvertAllRowsDroppedProducesNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.csv")
	content := "time,open,high,low,close\nnope,100,101,99,100\nalso-bad,1,2,0,1\n"
	require.NoError(t, os.WriteFile(input, []byte(content), 0644))

	cfg := config.Default()
	p := NewWithCollaborators(cfg, discardLogger(), &stubFetcher{}, sink.NewExcelWriter(nil))

	err := p.Convert(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindEmptyAfterNormalization))

	_, statErr := os.Stat(filepath.Join(dir, "bad.xlsx"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportRemovesIntermediateCSV(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	cfg := config.Default()
	cfg.Output.OutputFile = filepath.Join(dir, "out.xlsx")
	p := NewWithCollaborators(cfg, discardLogger(), &stubFetcher{bars: scenarioBars()}, sink.NewExcelWriter(nil))

	require.NoError(t, p.Export(context.Background()))

	_, err := os.Stat(cfg.Output.OutputFile)
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "nq_15m_data.csv"))
	assert.True(t, os.IsNotExist(err), "intermediate CSV should be removed on success")
}

func TestExportPropagatesFetchFailure(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	cfg := config.Default()
	fetchErr := apperrors.Errorf(apperrors.KindNoData, "fetch.FetchBars", "no data found for NQ=F")
	p := NewWithCollaborators(cfg, discardLogger(), &stubFetcher{err: fetchErr}, sink.NewExcelWriter(nil))

	err := p.Export(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNoData))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "failed export should leave nothing behind")
}

func TestIntermediatePathDerivedFromSymbol(t *testing.T) {
	cfg := config.Default()
	cfg.Fetch.Symbol = "ES=F"
	p := NewWithCollaborators(cfg, discardLogger(), &stubFetcher{}, sink.NewExcelWriter(nil))

	assert.Equal(t, "es_15m_data.csv", p.intermediatePath())
}

func TestDescribeMessagesPerKind(t *testing.T) {
	tests := []struct {
		kind apperrors.Kind
		want string
	}{
		{apperrors.KindMissingInputFile, "was not found"},
		{apperrors.KindMissingRequiredColumn, "missing required columns"},
		{apperrors.KindEmptyAfterNormalization, "valid timestamps"},
		{apperrors.KindUnknownTimezone, "IANA zone"},
		{apperrors.KindNoData, "no data"},
		{apperrors.KindUnclassified, "run failed"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := apperrors.Errorf(tt.kind, "op", "detail")
			assert.Contains(t, Describe(err), tt.want)
		})
	}
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { os.Chdir(old) }
}
