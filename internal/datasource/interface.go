package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/factorlab/internal/models"
)

// FactorSource loads the factor table in its source units
type FactorSource interface {
	// FetchFactors returns factor rows dated within [start, end]
	FetchFactors(ctx context.Context, start, end time.Time) (models.Frame, error)

	// Name returns the name of the data source
	Name() string
}

// PriceSource loads adjusted prices with one column per ticker
type PriceSource interface {
	// FetchPrices returns price rows dated within [start, end]. A date
	// missing for some ticker holds NaN in that ticker's column.
	FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (models.Frame, error)

	// Name returns the name of the data source
	Name() string
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e DataSourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
	ErrCodeUnknown              = "unknown"
)

// Error constructors
var (
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("data not found")
	ErrInvalidData          = errors.New("invalid data format")
	ErrNetworkError         = errors.New("network error")
	ErrServerError          = errors.New("server error")
	ErrCircuitOpen          = errors.New("circuit breaker open")
)

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// filterRange keeps the rows dated within [start, end]. Zero bounds are open.
func filterRange(frame models.Frame, start, end time.Time) models.Frame {
	start, end = normalizeBound(start), normalizeBound(end)
	idx := make([]int, 0, frame.Len())
	for i, d := range frame.Dates() {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		idx = append(idx, i)
	}
	return frame.Rows(idx)
}

func normalizeBound(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return models.NormalizeDate(t)
}

func rangeKey(start, end time.Time) string {
	return fmt.Sprintf("%s:%s", start.Format(models.DateLayout), end.Format(models.DateLayout))
}
