package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "FACTORLAB"
	defaultConfigPath = "config/config.yaml"
)

// newViper returns a viper instance bound to FACTORLAB_* environment variables
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// setDefaults registers a default for every optional key
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "factorlab")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("data.factor_units", "percent")
	v.SetDefault("data.price_source", "csv")
	v.SetDefault("data.price_api_url", "https://query1.finance.yahoo.com")
	v.SetDefault("data.requests_per_second", 2.0)
	v.SetDefault("data.burst", 4)
	v.SetDefault("data.timeout_seconds", 30)
	v.SetDefault("data.retry_attempts", 3)
	v.SetDefault("data.cache_ttl_minutes", 60)
	v.SetDefault("data.fetch_workers", 4)

	v.SetDefault("regression.factors", []string{"Market", "SMB", "HML", "RMW", "CMA"})
	v.SetDefault("regression.risk_free", "RF")
	v.SetDefault("regression.use_excess_returns", false)
	v.SetDefault("regression.max_condition_number", 1e12)
	v.SetDefault("regression.rolling_window", 126)
	v.SetDefault("regression.workers", 0)

	v.SetDefault("portfolio.top_n", 20)
	v.SetDefault("portfolio.capital", 100000.0)

	v.SetDefault("ml_strategy.enabled", true)
	v.SetDefault("ml_strategy.top_n", 10)
	v.SetDefault("ml_strategy.rebalance_interval_months", 3)
	v.SetDefault("ml_strategy.min_months", 24)
	v.SetDefault("ml_strategy.max_start_months", 48)
	v.SetDefault("ml_strategy.start_fraction", 0.5)
	v.SetDefault("ml_strategy.embargo_months", 0)
	v.SetDefault("ml_strategy.num_trees", 100)
	v.SetDefault("ml_strategy.max_depth", 5)
	v.SetDefault("ml_strategy.min_samples_leaf", 1)
	v.SetDefault("ml_strategy.max_features", 0)
	v.SetDefault("ml_strategy.seed", 42)
	v.SetDefault("ml_strategy.workers", 0)

	v.SetDefault("backtest.bootstrap_iterations", 1000)
	v.SetDefault("backtest.bootstrap_seed", 42)
	v.SetDefault("backtest.risk_free_rate", 0.0)

	v.SetDefault("output.directory", "results")
	v.SetDefault("output.write_csv", true)
	v.SetDefault("output.write_json", true)
	v.SetDefault("output.console", true)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.cron", "0 6 * * 1-5")
	v.SetDefault("schedule.mode", "compare")
	v.SetDefault("schedule.run_on_start", false)

	v.SetDefault("secrets.enabled", false)
}

// readExpanded reads a YAML file into v after expanding ${VAR} placeholders
func readExpanded(v *viper.Viper, data []byte) error {
	expanded := os.ExpandEnv(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Load reads and parses the configuration from file and environment variables.
// The file must exist. ${VAR_NAME} placeholders in it are expanded.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	setDefaults(v)
	if err := readExpanded(v, data); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := readExpanded(v, data); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// LoadAndValidate loads the configuration, overlays AWS secrets when enabled and validates it
func LoadAndValidate(configPath string) (*Config, error) {
	cfg, err := LoadWithDefaults(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Secrets.Enabled {
		if err := LoadSecretsFromAWS(cfg, cfg.Secrets.Region, cfg.Secrets.SecretName); err != nil {
			return nil, err
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReloadFromEnv reloads the configuration from FACTORLAB_CONFIG_PATH when it is set
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := Load(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}
	return nil
}
