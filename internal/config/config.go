// Package config provides configuration management for the factorlab pipeline.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// DateLayout is the format of every date in the configuration
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Universe   UniverseConfig   `mapstructure:"universe" validate:"required"`
	Data       DataConfig       `mapstructure:"data" validate:"required"`
	Regression RegressionConfig `mapstructure:"regression" validate:"required"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio" validate:"required"`
	MLStrategy MLStrategyConfig `mapstructure:"ml_strategy" validate:"required"`
	Backtest   BacktestConfig   `mapstructure:"backtest" validate:"required"`
	Output     OutputConfig     `mapstructure:"output" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// UniverseConfig lists the assets and the sample period
type UniverseConfig struct {
	Tickers   []string `mapstructure:"tickers" validate:"required,min=1,dive,required"`
	StartDate string   `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
}

// DataConfig represents price and factor data source configuration
type DataConfig struct {
	FactorPath        string  `mapstructure:"factor_path" validate:"required"`
	FactorUnits       string  `mapstructure:"factor_units" validate:"required,factorunits"`
	PriceSource       string  `mapstructure:"price_source" validate:"required,pricesource"`
	PricePath         string  `mapstructure:"price_path"`
	PriceAPIURL       string  `mapstructure:"price_api_url" validate:"omitempty,url"`
	PriceAPIKey       string  `mapstructure:"price_api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"gt=0"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"gt=0"`
	RetryAttempts     int     `mapstructure:"retry_attempts" validate:"gte=0"`
	CacheTTLMinutes   int     `mapstructure:"cache_ttl_minutes" validate:"gte=0"`
	FetchWorkers      int     `mapstructure:"fetch_workers" validate:"gte=0"`
}

// RegressionConfig represents factor regression configuration
type RegressionConfig struct {
	Factors            []string `mapstructure:"factors" validate:"required,min=1,dive,required"`
	RiskFree           string   `mapstructure:"risk_free"`
	UseExcessReturns   bool     `mapstructure:"use_excess_returns"`
	MaxConditionNumber float64  `mapstructure:"max_condition_number" validate:"gt=0"`
	RollingWindow      int      `mapstructure:"rolling_window" validate:"gt=0"`
	Workers            int      `mapstructure:"workers" validate:"gte=0"`
}

// PortfolioConfig represents static portfolio construction settings
type PortfolioConfig struct {
	TopN    int     `mapstructure:"top_n" validate:"gt=0"`
	Capital float64 `mapstructure:"capital" validate:"gt=0"`
}

// MLStrategyConfig represents the rolling random-forest strategy settings
type MLStrategyConfig struct {
	Enabled                 bool    `mapstructure:"enabled"`
	TopN                    int     `mapstructure:"top_n" validate:"gt=0"`
	RebalanceIntervalMonths int     `mapstructure:"rebalance_interval_months" validate:"gt=0"`
	MinMonths               int     `mapstructure:"min_months" validate:"gt=1"`
	MaxStartMonths          int     `mapstructure:"max_start_months" validate:"gt=0"`
	StartFraction           float64 `mapstructure:"start_fraction" validate:"gt=0,lt=1"`
	EmbargoMonths           int     `mapstructure:"embargo_months" validate:"gte=0"`
	NumTrees                int     `mapstructure:"num_trees" validate:"gt=0"`
	MaxDepth                int     `mapstructure:"max_depth" validate:"gt=0"`
	MinSamplesLeaf          int     `mapstructure:"min_samples_leaf" validate:"gt=0"`
	MaxFeatures             int     `mapstructure:"max_features" validate:"gte=0"`
	Seed                    int64   `mapstructure:"seed"`
	Workers                 int     `mapstructure:"workers" validate:"gte=0"`
}

// BacktestConfig represents backtest risk analysis settings
type BacktestConfig struct {
	BootstrapIterations int     `mapstructure:"bootstrap_iterations" validate:"gte=0"`
	BootstrapSeed       int64   `mapstructure:"bootstrap_seed"`
	RiskFreeRate        float64 `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
}

// OutputConfig represents artifact output settings
type OutputConfig struct {
	Directory string `mapstructure:"directory" validate:"required"`
	WriteCSV  bool   `mapstructure:"write_csv"`
	WriteJSON bool   `mapstructure:"write_json"`
	Console   bool   `mapstructure:"console"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"gte=0"`
	MinConnections int    `mapstructure:"min_connections" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// ScheduleConfig represents the pipeline schedule for the daemon
type ScheduleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Cron       string `mapstructure:"cron"`
	Mode       string `mapstructure:"mode" validate:"omitempty,oneof=static rolling ml compare"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// SecretsConfig points at an AWS Secrets Manager secret overlaid on the configuration
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// DSN returns the connection URL with credentials escaped
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// Period returns the parsed universe start and end dates
func (c *Config) Period() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, c.Universe.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid universe start_date: %w", err)
	}
	end, err := time.Parse(DateLayout, c.Universe.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid universe end_date: %w", err)
	}
	return start, end, nil
}
