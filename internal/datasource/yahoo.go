package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/metrics"
	"github.com/yourusername/factorlab/internal/models"
	"golang.org/x/sync/errgroup"
)

const yahooSourceName = "yahoo"

// YahooPriceSource fetches daily adjusted closes from a Yahoo-compatible chart API
type YahooPriceSource struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	workers    int
	logger     *logrus.Entry
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// NewYahooPriceSource creates a chart API price source
func NewYahooPriceSource(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, workers int, logger *logrus.Logger) *YahooPriceSource {
	if logger == nil {
		logger = logrus.New()
	}
	if workers <= 0 {
		workers = 4
	}
	return &YahooPriceSource{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		workers:    workers,
		logger:     logger.WithField("source", yahooSourceName),
	}
}

// Name returns the name of the data source
func (s *YahooPriceSource) Name() string {
	return yahooSourceName
}

// FetchPrices fetches every ticker concurrently and outer-joins them on date
func (s *YahooPriceSource) FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (models.Frame, error) {
	if len(tickers) == 0 {
		return models.Frame{}, NewDataSourceError(s.Name(), ErrCodeInvalidData, "no tickers requested", ErrInvalidData)
	}

	series := make([]map[time.Time]float64, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			prices, err := s.fetchTicker(gctx, ticker, start, end)
			if err != nil {
				return err
			}
			series[i] = prices
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Frame{}, err
	}

	return joinSeries(tickers, series)
}

func (s *YahooPriceSource) fetchTicker(ctx context.Context, ticker string, start, end time.Time) (map[time.Time]float64, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	// the chart API end bound is exclusive
	q.Set("period2", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewDataSourceError(s.Name(), ErrCodeNetworkError, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-KEY", s.apiKey)
	}

	resp, err := s.httpClient.Do(ctx, req)
	if err != nil {
		metrics.RecordDataSourceRequest(s.Name(), "error")
		return nil, NewDataSourceError(s.Name(), ErrCodeNetworkError, "failed to fetch "+ticker, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.RecordDataSourceRequest(s.Name(), "unauthorized")
		return nil, NewDataSourceError(s.Name(), ErrCodeAuthenticationFailed, "request rejected for "+ticker, ErrAuthenticationFailed)
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordDataSourceRequest(s.Name(), "not_found")
		return nil, NewDataSourceError(s.Name(), ErrCodeNotFound, "unknown ticker "+ticker, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordDataSourceRequest(s.Name(), "rate_limited")
		return nil, NewDataSourceError(s.Name(), ErrCodeRateLimitExceeded, "rate limit exceeded", ErrRateLimitExceeded)
	case resp.StatusCode != http.StatusOK:
		metrics.RecordDataSourceRequest(s.Name(), "error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewDataSourceError(s.Name(), ErrCodeServerError,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), ErrServerError)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		metrics.RecordDataSourceRequest(s.Name(), "invalid")
		return nil, NewDataSourceError(s.Name(), ErrCodeInvalidData, "failed to parse response for "+ticker, err)
	}
	metrics.RecordDataSourceRequest(s.Name(), "ok")

	if chart.Chart.Error != nil {
		return nil, NewDataSourceError(s.Name(), ErrCodeNotFound, chart.Chart.Error.Description, ErrNotFound)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, NewDataSourceError(s.Name(), ErrCodeNotFound, "empty chart for "+ticker, ErrNotFound)
	}

	prices, err := chart.Chart.Result[0].prices()
	if err != nil {
		return nil, NewDataSourceError(s.Name(), ErrCodeInvalidData, ticker, err)
	}
	s.logger.WithFields(logrus.Fields{"ticker": ticker, "rows": len(prices)}).Debug("Fetched prices")
	return prices, nil
}

// prices prefers adjusted closes and falls back to raw closes
func (r chartResult) prices() (map[time.Time]float64, error) {
	var values []*float64
	switch {
	case len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) > 0:
		values = r.Indicators.AdjClose[0].AdjClose
	case len(r.Indicators.Quote) > 0:
		values = r.Indicators.Quote[0].Close
	}
	if len(values) != len(r.Timestamp) {
		return nil, fmt.Errorf("%w: %d prices for %d timestamps", ErrInvalidData, len(values), len(r.Timestamp))
	}

	zone := time.FixedZone("exchange", r.Meta.GMTOffset)
	out := make(map[time.Time]float64, len(values))
	for i, ts := range r.Timestamp {
		if values[i] == nil {
			continue
		}
		out[models.NormalizeDate(time.Unix(ts, 0).In(zone))] = *values[i]
	}
	return out, nil
}

// joinSeries outer-joins per-ticker prices on date, filling gaps with NaN
func joinSeries(tickers []string, series []map[time.Time]float64) (models.Frame, error) {
	seen := make(map[time.Time]bool)
	for _, s := range series {
		for d := range s {
			seen[d] = true
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	values := make(map[string][]float64, len(tickers))
	for k, t := range tickers {
		col := make([]float64, len(dates))
		for i, d := range dates {
			if v, ok := series[k][d]; ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		values[t] = col
	}
	return models.NewFrame(dates, tickers, values)
}
