// Package config provides configuration management for the research lab.
package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/yourusername/research-lab/internal/models"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails for empty tags or nil funcs
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("experimenttype", validateExperimentType)
	_ = v.RegisterValidation("cronspec", validateCronSpec)

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

func validateExperimentType(fl validator.FieldLevel) bool {
	return models.ExperimentType(fl.Field().String()).Valid()
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	w := cfg.Fitness.Weights
	sum := w.Return + w.Risk + w.Consistency + w.Efficiency + w.Robustness
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("fitness weights must sum to 1.0, got %.6f", sum)
	}

	rt := cfg.Fitness.RiskThresholds
	if !(rt.Conservative < rt.Moderate && rt.Moderate < rt.Aggressive) {
		return fmt.Errorf("risk thresholds must be strictly increasing: conservative < moderate < aggressive")
	}

	if cfg.Store.Backend == "postgres" {
		if cfg.Database.Host == "" || cfg.Database.Name == "" || cfg.Database.User == "" {
			return fmt.Errorf("postgres store requires database host, name and user")
		}
		if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
			return fmt.Errorf("max_idle_connections cannot exceed max_connections")
		}
	}

	if cfg.Platform.Mode == "http" && cfg.Platform.URL == "" {
		return fmt.Errorf("platform url is required when platform mode is http")
	}

	if cfg.Hypothesis.Enabled && cfg.Hypothesis.URL == "" {
		return fmt.Errorf("hypothesis url is required when hypothesis generation is enabled")
	}

	if cfg.Research.Enabled && cfg.Research.Schedule == "" {
		return fmt.Errorf("research schedule is required when research cycles are enabled")
	}

	if cfg.Events.Kafka.Enabled && (len(cfg.Events.Kafka.Brokers) == 0 || cfg.Events.Kafka.Topic == "") {
		return fmt.Errorf("kafka events require brokers and a topic")
	}

	if cfg.IsProduction() {
		if cfg.Store.Backend != "postgres" {
			return fmt.Errorf("production environment requires the postgres store")
		}
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
		}
		if cfg.Platform.Mode == "simulated" {
			return fmt.Errorf("simulated platform is not allowed in production")
		}
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "experimenttype":
			fmt.Fprintf(&b, "- Field '%s' must be a known experiment type, got '%v'\n", field, value)
		case "cronspec":
			fmt.Fprintf(&b, "- Field '%s' must be a valid cron expression, got '%v'\n", field, value)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}

// ValidateEnvironment checks credentials look real outside development
func ValidateEnvironment(cfg *Config) error {
	if !cfg.IsProduction() {
		return nil
	}
	if isTestCredential(cfg.Platform.APIKey) {
		return fmt.Errorf("production environment should not use test platform credentials")
	}
	if cfg.Hypothesis.Enabled && isTestCredential(cfg.Hypothesis.APIKey) {
		return fmt.Errorf("production environment should not use test hypothesis credentials")
	}
	return nil
}

var testCredentialPattern = regexp.MustCompile(`(?i)(test|demo|example|placeholder|YOUR_)`)

func isTestCredential(credential string) bool {
	return testCredentialPattern.MatchString(credential)
}
