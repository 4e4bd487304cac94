package backtest

import (
	"fmt"
	"time"

	"github.com/yourusername/factorlab/internal/config"
)

// BacktestConfig extends core config with backtest-specific settings
type BacktestConfig struct {
	StartDate           time.Time
	EndDate             time.Time
	TopN                int
	InitialCapital      float64
	RiskFreeRate        float64
	BootstrapIterations int
	BootstrapSeed       int64
	OutputPath          string
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.Config) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, fmt.Errorf("config is required")
	}
	start, end, err := cfg.Period()
	if err != nil {
		return BacktestConfig{}, err
	}

	bt := BacktestConfig{
		StartDate:           start,
		EndDate:             end,
		TopN:                cfg.Portfolio.TopN,
		InitialCapital:      cfg.Portfolio.Capital,
		RiskFreeRate:        cfg.Backtest.RiskFreeRate,
		BootstrapIterations: cfg.Backtest.BootstrapIterations,
		BootstrapSeed:       cfg.Backtest.BootstrapSeed,
		OutputPath:          cfg.Output.Directory,
	}

	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (b BacktestConfig) Validate() error {
	if !b.StartDate.Before(b.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}
	if b.TopN <= 0 {
		return fmt.Errorf("top n must be positive")
	}
	if b.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if b.RiskFreeRate < 0 || b.RiskFreeRate > 1 {
		return fmt.Errorf("risk free rate must be between 0 and 1")
	}
	if b.BootstrapIterations < 0 {
		return fmt.Errorf("bootstrap iterations cannot be negative")
	}
	return nil
}
