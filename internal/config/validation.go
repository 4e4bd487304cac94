package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("datetime", validateDateTime)
	_ = v.RegisterValidation("pricesource", validatePriceSource)
	_ = v.RegisterValidation("factorunits", validateFactorUnits)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateDateTime validates YYYY-MM-DD strings
func validateDateTime(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

func validatePriceSource(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "csv", "yahoo":
		return true
	default:
		return false
	}
}

func validateFactorUnits(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "percent", "fraction":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	start, end, err := cfg.Period()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("universe start_date must be before end_date")
	}

	seen := make(map[string]bool, len(cfg.Universe.Tickers))
	for _, ticker := range cfg.Universe.Tickers {
		if seen[ticker] {
			return fmt.Errorf("duplicate ticker %q in universe", ticker)
		}
		seen[ticker] = true
	}

	if cfg.Portfolio.TopN > len(cfg.Universe.Tickers) {
		return fmt.Errorf("portfolio top_n (%d) cannot exceed universe size (%d)", cfg.Portfolio.TopN, len(cfg.Universe.Tickers))
	}
	if cfg.MLStrategy.TopN > len(cfg.Universe.Tickers) {
		return fmt.Errorf("ml_strategy top_n (%d) cannot exceed universe size (%d)", cfg.MLStrategy.TopN, len(cfg.Universe.Tickers))
	}

	if cfg.Regression.RollingWindow <= len(cfg.Regression.Factors)+1 {
		return fmt.Errorf("regression rolling_window (%d) must exceed the number of coefficients (%d)",
			cfg.Regression.RollingWindow, len(cfg.Regression.Factors)+1)
	}
	if cfg.Regression.UseExcessReturns && cfg.Regression.RiskFree == "" {
		return fmt.Errorf("regression use_excess_returns requires risk_free")
	}
	if cfg.MLStrategy.Enabled && cfg.Regression.RiskFree == "" {
		return fmt.Errorf("ml_strategy requires regression risk_free for excess-return labels")
	}

	switch cfg.Data.PriceSource {
	case "csv":
		if cfg.Data.PricePath == "" {
			return fmt.Errorf("data price_path is required for the csv price source")
		}
	case "yahoo":
		if cfg.Data.PriceAPIURL == "" {
			return fmt.Errorf("data price_api_url is required for the yahoo price source")
		}
	}

	if cfg.Database.Enabled {
		if cfg.Database.Host == "" || cfg.Database.Name == "" || cfg.Database.User == "" {
			return fmt.Errorf("database host, name and user are required when the database is enabled")
		}
		if cfg.Database.MinConnections > cfg.Database.MaxConnections {
			return fmt.Errorf("database min_connections cannot exceed max_connections")
		}
	}

	if cfg.Schedule.Enabled && strings.TrimSpace(cfg.Schedule.Cron) == "" {
		return fmt.Errorf("schedule cron expression is required when the schedule is enabled")
	}

	if cfg.Secrets.Enabled && (cfg.Secrets.Region == "" || cfg.Secrets.SecretName == "") {
		return fmt.Errorf("secrets region and secret_name are required when secrets are enabled")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "datetime":
			errMsg += fmt.Sprintf("- Field '%s' must be a YYYY-MM-DD date, got '%v'\n", field, value)
		case "pricesource":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: csv, yahoo\n", field)
		case "factorunits":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: percent, fraction\n", field)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() && cfg.Database.Enabled {
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires database SSL mode to be 'require' or 'verify-full'")
		}
		if isTestCredential(cfg.Database.User) {
			return fmt.Errorf("production environment should not use test database credentials")
		}
	}
	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}
	return false
}
