// Package config provides configuration management for the research lab.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app" validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Store        StoreConfig        `mapstructure:"store" validate:"required"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" validate:"required"`
	Fitness      FitnessConfig      `mapstructure:"fitness" validate:"required"`
	Platform     PlatformConfig     `mapstructure:"platform" validate:"required"`
	Hypothesis   HypothesisConfig   `mapstructure:"hypothesis"`
	Research     ResearchConfig     `mapstructure:"research"`
	Events       EventsConfig       `mapstructure:"events"`
	Server       ServerConfig       `mapstructure:"server" validate:"required"`
	Metrics      MetricsConfig      `mapstructure:"metrics" validate:"required"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"omitempty,gt=0"`
}

// StoreConfig selects the experiment store backend
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=postgres memory"`
}

// OrchestratorConfig bounds experiment execution
type OrchestratorConfig struct {
	MaxConcurrentExperiments int     `mapstructure:"max_concurrent_experiments" validate:"required,gt=0"`
	DefaultTimeoutHours      float64 `mapstructure:"default_timeout_hours" validate:"required,gt=0"`
	PollIntervalSeconds      int     `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`
	MaxStatusFailures        int     `mapstructure:"max_status_failures" validate:"required,gt=0"`
	ShutdownTimeoutSeconds   int     `mapstructure:"shutdown_timeout_seconds" validate:"required,gt=0"`
}

// FitnessConfig represents scoring weights and acceptance thresholds
type FitnessConfig struct {
	Weights            FitnessWeightsConfig `mapstructure:"weights" validate:"required"`
	TargetAnnualReturn float64              `mapstructure:"target_annual_return" validate:"required,gt=0"`
	MaxDrawdown        float64              `mapstructure:"max_drawdown" validate:"required,gt=0,lte=1"`
	MinSharpe          float64              `mapstructure:"min_sharpe"`
	MinProfitFactor    float64              `mapstructure:"min_profit_factor" validate:"gte=0"`
	MinTrades          int                  `mapstructure:"min_trades" validate:"gte=0"`
	MinWinRate         float64              `mapstructure:"min_win_rate" validate:"gte=0,lte=1"`
	MaxVolatility      float64              `mapstructure:"max_volatility" validate:"required,gt=0"`
	RiskFreeRate       float64              `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
	RiskThresholds     RiskThresholdsConfig `mapstructure:"risk_thresholds" validate:"required"`
}

// FitnessWeightsConfig holds the five component weights
type FitnessWeightsConfig struct {
	Return      float64 `mapstructure:"return" validate:"gte=0,lte=1"`
	Risk        float64 `mapstructure:"risk" validate:"gte=0,lte=1"`
	Consistency float64 `mapstructure:"consistency" validate:"gte=0,lte=1"`
	Efficiency  float64 `mapstructure:"efficiency" validate:"gte=0,lte=1"`
	Robustness  float64 `mapstructure:"robustness" validate:"gte=0,lte=1"`
}

// RiskThresholdsConfig holds the risk profile bucket edges
type RiskThresholdsConfig struct {
	Conservative float64 `mapstructure:"conservative" validate:"required,gt=0"`
	Moderate     float64 `mapstructure:"moderate" validate:"required,gt=0"`
	Aggressive   float64 `mapstructure:"aggressive" validate:"required,gt=0"`
}

// PlatformConfig represents the training/backtesting platform connection
type PlatformConfig struct {
	Mode              string  `mapstructure:"mode" validate:"required,oneof=http simulated"`
	URL               string  `mapstructure:"url" validate:"omitempty,url"`
	GRPCHealthAddress string  `mapstructure:"grpc_health_address"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryAttempts     int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RateLimit         float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
	SimulatedPolls    int     `mapstructure:"simulated_polls" validate:"gte=0"`
}

// HypothesisConfig represents the LLM-backed hypothesis service
type HypothesisConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	URL             string  `mapstructure:"url" validate:"omitempty,url"`
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds" validate:"omitempty,gt=0"`
	MaxHypotheses   int     `mapstructure:"max_hypotheses" validate:"omitempty,gt=0"`
	MinConfidence   float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
}

// ResearchConfig controls scheduled research cycles
type ResearchConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Schedule        string `mapstructure:"schedule" validate:"omitempty,cronspec"`
	Focus           string `mapstructure:"focus"`
	RefineTopN      int    `mapstructure:"refine_top_n" validate:"gte=0"`
	DefaultPriority int    `mapstructure:"default_priority"`
	DefaultType     string `mapstructure:"default_type" validate:"omitempty,experimenttype"`
}

// EventsConfig configures lifecycle event fan-out
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka publisher
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ServerConfig represents the HTTP API server
type ServerConfig struct {
	Port               int `mapstructure:"port" validate:"required,min=1,max=65535"`
	HealthPort         int `mapstructure:"health_port" validate:"required,min=1,max=65535"`
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds" validate:"omitempty,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required"`
}

// SecretsConfig points at an optional AWS Secrets Manager overlay
type SecretsConfig struct {
	AWSRegion  string `mapstructure:"aws_region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// PollInterval returns the platform status polling period
func (o OrchestratorConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalSeconds) * time.Second
}

// ShutdownTimeout returns how long shutdown waits for in-flight experiments
func (o OrchestratorConfig) ShutdownTimeout() time.Duration {
	return time.Duration(o.ShutdownTimeoutSeconds) * time.Second
}
