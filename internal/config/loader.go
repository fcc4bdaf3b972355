// Package config provides configuration management for the research lab.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "config/config.yaml"
	envPrefix         = "RESEARCH_LAB"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
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
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables still apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
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

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "research-lab")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("orchestrator.max_concurrent_experiments", 4)
	v.SetDefault("orchestrator.default_timeout_hours", 24)
	v.SetDefault("orchestrator.poll_interval_seconds", 30)
	v.SetDefault("orchestrator.max_status_failures", 5)
	v.SetDefault("orchestrator.shutdown_timeout_seconds", 30)

	v.SetDefault("fitness.weights.return", 0.25)
	v.SetDefault("fitness.weights.risk", 0.25)
	v.SetDefault("fitness.weights.consistency", 0.20)
	v.SetDefault("fitness.weights.efficiency", 0.15)
	v.SetDefault("fitness.weights.robustness", 0.15)
	v.SetDefault("fitness.target_annual_return", 0.15)
	v.SetDefault("fitness.max_drawdown", 0.20)
	v.SetDefault("fitness.min_sharpe", 0.5)
	v.SetDefault("fitness.min_profit_factor", 1.1)
	v.SetDefault("fitness.min_trades", 30)
	v.SetDefault("fitness.min_win_rate", 0.40)
	v.SetDefault("fitness.max_volatility", 0.50)
	v.SetDefault("fitness.risk_free_rate", 0.02)
	v.SetDefault("fitness.risk_thresholds.conservative", 0.15)
	v.SetDefault("fitness.risk_thresholds.moderate", 0.25)
	v.SetDefault("fitness.risk_thresholds.aggressive", 0.40)

	v.SetDefault("platform.mode", "simulated")
	v.SetDefault("platform.timeout_seconds", 30)
	v.SetDefault("platform.retry_attempts", 3)
	v.SetDefault("platform.rate_limit", 5)
	v.SetDefault("platform.simulated_polls", 2)

	v.SetDefault("hypothesis.timeout_seconds", 60)
	v.SetDefault("hypothesis.cache_ttl_seconds", 900)
	v.SetDefault("hypothesis.max_hypotheses", 5)
	v.SetDefault("hypothesis.min_confidence", 0.5)

	v.SetDefault("research.schedule", "0 */6 * * *")
	v.SetDefault("research.default_type", "pattern-discovery")
	v.SetDefault("research.refine_top_n", 3)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.read_timeout_seconds", 15)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
