package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mserhatbalik/price-export/internal/config"
	apperrors "github.com/mserhatbalik/price-export/internal/errors"
)

const chartBody = `{
	"chart": {
		"result": [{
			"timestamp": [1700000000, 1700000900, 1700001800],
			"indicators": {
				"quote": [{
					"open":   [100.5, null, 102],
					"high":   [101,   null, 103],
					"low":    [99.5,  null, 101],
					"close":  [100.75, null, 102.25],
					"volume": [1200,  null, 800]
				}]
			}
		}],
		"error": null
	}
}`

const emptyChartBody = `{"chart": {"result": [], "error": null}}`

func testClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	return NewClient(config.FetchConfig{
		BaseURL:       baseURL,
		Timeout:       "5s",
		RateLimit:     1000,
		RetryAttempts: retries,
	}, nil)
}

func testRequest() Request {
	return Request{
		Symbol:   "NQ=F",
		Start:    time.Unix(1699990000, 0),
		End:      time.Unix(1700010000, 0),
		Interval: "15m",
	}
}

func TestFetchBarsParsesChartPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/NQ=F")
		assert.Equal(t, "15m", r.URL.Query().Get("interval"))
		assert.Equal(t, "1699990000", r.URL.Query().Get("period1"))
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	bars, err := testClient(t, srv.URL, 0).FetchBars(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, int64(1700000000), bars[0].Time)
	open, ok := bars[0].Open.Decimal()
	require.True(t, ok)
	assert.True(t, open.Equal(decimal.RequireFromString("100.5")))

	// Null quote entries become missing cells on a kept row, not dropped rows.
	assert.Equal(t, int64(1700000900), bars[1].Time)
	assert.True(t, bars[1].Open.IsMissing())
	assert.True(t, bars[1].Close.IsMissing())

	closeCell, ok := bars[2].Close.Decimal()
	require.True(t, ok)
	assert.True(t, closeCell.Equal(decimal.RequireFromString("102.25")))
}

func TestFetchBarsEmptyResultIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyChartBody))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 0).FetchBars(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNoData))
}

func TestFetchBarsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	bars, err := testClient(t, srv.URL, 3).FetchBars(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchBarsDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 3).FetchBars(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchBarsReportsChartAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 0).FetchBars(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol may be delisted")
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		valid  bool
	}{
		{"valid", func(r *Request) {}, true},
		{"empty symbol", func(r *Request) { r.Symbol = "" }, false},
		{"zero start", func(r *Request) { r.Start = time.Time{} }, false},
		{"end before start", func(r *Request) { r.End = r.Start.Add(-time.Hour) }, false},
		{"unsupported interval", func(r *Request) { r.Interval = "7m" }, false},
		{"daily interval", func(r *Request) { r.Interval = "1d" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
