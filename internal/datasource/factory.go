package datasource

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/config"
)

// SourceType represents the type of price source
type SourceType string

const (
	// CSVSourceType reads prices from a local file
	CSVSourceType SourceType = "csv"
	// YahooSourceType fetches prices from a chart API
	YahooSourceType SourceType = "yahoo"
)

// Factory creates sources based on configuration
type Factory struct {
	logger *logrus.Logger
	config config.DataConfig
}

// NewFactory creates a new data source factory
func NewFactory(cfg config.DataConfig, logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{logger: logger, config: cfg}
}

// NewFactorSource creates the factor table source
func (f *Factory) NewFactorSource() (FactorSource, error) {
	if f.config.FactorPath == "" {
		return nil, fmt.Errorf("factor path is required")
	}
	return NewCSVFactorSource(f.config.FactorPath), nil
}

// NewPriceSource creates the configured price source. Remote sources are
// wrapped in a cache when a TTL is configured.
func (f *Factory) NewPriceSource() (PriceSource, error) {
	switch SourceType(f.config.PriceSource) {
	case CSVSourceType:
		if f.config.PricePath == "" {
			return nil, fmt.Errorf("price path is required for the csv source")
		}
		return NewCSVPriceSource(f.config.PricePath), nil

	case YahooSourceType:
		if f.config.PriceAPIURL == "" {
			return nil, fmt.Errorf("price api url is required for the yahoo source")
		}
		httpCfg := DefaultHTTPClientConfig()
		if f.config.TimeoutSeconds > 0 {
			httpCfg.Timeout = time.Duration(f.config.TimeoutSeconds) * time.Second
		}
		httpCfg.MaxRetries = f.config.RetryAttempts
		if f.config.RequestsPerSecond > 0 {
			httpCfg.RateLimit = f.config.RequestsPerSecond
		}
		if f.config.Burst > 0 {
			httpCfg.Burst = f.config.Burst
		}

		var source PriceSource = NewYahooPriceSource(NewRateLimitedHTTPClient(httpCfg, f.logger),
			f.config.PriceAPIURL, f.config.PriceAPIKey, f.config.FetchWorkers, f.logger)
		if f.config.CacheTTLMinutes > 0 {
			source = NewCachedPriceSource(source, time.Duration(f.config.CacheTTLMinutes)*time.Minute)
		}
		f.logger.WithField("source", source.Name()).Info("Created price source")
		return source, nil

	default:
		return nil, fmt.Errorf("unknown price source: %s", f.config.PriceSource)
	}
}
