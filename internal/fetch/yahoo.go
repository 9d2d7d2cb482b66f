// Package fetch provides the Yahoo Finance market-data adapter used to
// download intraday futures bars.
//
// The adapter wraps the public v8 chart API with rate limiting and
// exponential-backoff retry for transient failures, and converts the
// column-oriented chart payload into the internal bar model.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/mserhatbalik/price-export/internal/config"
	apperrors "github.com/mserhatbalik/price-export/internal/errors"
	"github.com/mserhatbalik/price-export/internal/models"
)

const (
	chartEndpoint = "/v8/finance/chart/%s"

	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// supportedIntervals are the chart API granularities this tool accepts.
var supportedIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true,
	"60m": true, "90m": true, "1h": true, "1d": true,
}

// Request describes one download: a symbol over a closed date range at a
// fixed bar interval.
type Request struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval string
}

// Validate checks the request parameters before any network activity.
func (r Request) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("start and end times are required")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("end time must be after start time")
	}
	if !supportedIntervals[r.Interval] {
		return fmt.Errorf("unsupported interval %q", r.Interval)
	}
	return nil
}

// Client is the Yahoo Finance chart API adapter.
type Client struct {
	httpClient    *http.Client
	limiter       *rate.Limiter
	baseURL       string
	retryAttempts int
	logger        *slog.Logger
}

// NewClient builds a fetch client from the fetch configuration.
func NewClient(cfg config.FetchConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout(),
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		baseURL:       cfg.BaseURL,
		retryAttempts: cfg.RetryAttempts,
		logger:        logger,
	}
}

// chartResponse mirrors the subset of the v8 chart payload this tool
// consumes. Quote arrays are column-oriented and use nulls for slots the
// venue reported no trade for.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchBars downloads the bars for the request and returns them ordered as
// the provider sent them, with epoch-second timestamps. An empty chart
// result is KindNoData.
func (c *Client) FetchBars(ctx context.Context, req Request) ([]models.Bar, error) {
	const op = "fetch.FetchBars"

	if err := req.Validate(); err != nil {
		return nil, apperrors.E(apperrors.KindUnclassified, op, fmt.Errorf("invalid request: %w", err))
	}

	c.logger.Debug("fetching bars",
		"symbol", req.Symbol,
		"start", req.Start,
		"end", req.End,
		"interval", req.Interval)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.E(apperrors.KindUnclassified, op, fmt.Errorf("rate limit wait failed: %w", err))
	}

	requestURL := fmt.Sprintf(c.baseURL+chartEndpoint, url.PathEscape(req.Symbol))
	query := url.Values{
		"period1":  {strconv.FormatInt(req.Start.Unix(), 10)},
		"period2":  {strconv.FormatInt(req.End.Unix(), 10)},
		"interval": {req.Interval},
	}

	body, err := c.getWithRetry(ctx, requestURL+"?"+query.Encode())
	if err != nil {
		return nil, apperrors.E(apperrors.KindUnclassified, op, err)
	}

	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.E(apperrors.KindUnclassified, op, fmt.Errorf("failed to parse chart response: %w", err))
	}

	if payload.Chart.Error != nil {
		return nil, apperrors.Errorf(apperrors.KindUnclassified, op, "chart API error %s: %s",
			payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, apperrors.Errorf(apperrors.KindNoData, op,
			"no data found for %s in the given period", req.Symbol)
	}

	result := payload.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, apperrors.Errorf(apperrors.KindNoData, op,
			"no data found for %s in the given period", req.Symbol)
	}

	quote := result.Indicators.Quote[0]
	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bars = append(bars, models.Bar{
			Time:   ts,
			Open:   floatCell(at(quote.Open, i)),
			High:   floatCell(at(quote.High, i)),
			Low:    floatCell(at(quote.Low, i)),
			Close:  floatCell(at(quote.Close, i)),
			Volume: floatCell(at(quote.Volume, i)),
		})
	}

	c.logger.Debug("successfully fetched bars", "symbol", req.Symbol, "count", len(bars))
	return bars, nil
}

// getWithRetry issues the GET with exponential backoff on network errors,
// 5xx responses and 429s. Other 4xx responses are permanent.
func (c *Client) getWithRetry(ctx context.Context, requestURL string) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialRetryDelay
	policy.MaxInterval = maxRetryDelay
	policy.MaxElapsedTime = 0

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "price-export/1.0")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("request failed, will retry", "attempt", attempt, "error", err)
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body = data
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.Warn("retryable response", "attempt", attempt, "status", resp.StatusCode)
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("request failed with status %d", resp.StatusCode))
		}
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retryAttempts)), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// at returns the i-th element of a nullable column, tolerating ragged or
// absent arrays.
func at(col []*float64, i int) *float64 {
	if i >= len(col) {
		return nil
	}
	return col[i]
}

// floatCell maps a nullable quote value to a tagged cell. Nulls become
// Missing cells rather than dropped rows: the timestamp slot existed, the
// venue just reported no trade.
func floatCell(v *float64) models.Cell {
	if v == nil {
		return models.Cell{}
	}
	return models.NumericCell(decimal.NewFromFloat(*v))
}
