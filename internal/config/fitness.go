package config

import "github.com/yourusername/research-lab/internal/analysis"

// ScoringConfig converts the fitness section into the scorer's configuration.
// Limits without a config key keep the scorer defaults.
func (f FitnessConfig) ScoringConfig() analysis.FitnessConfig {
	cfg := analysis.DefaultFitnessConfig()
	cfg.Weights = analysis.FitnessWeights{
		Return:      f.Weights.Return,
		Risk:        f.Weights.Risk,
		Consistency: f.Weights.Consistency,
		Efficiency:  f.Weights.Efficiency,
		Robustness:  f.Weights.Robustness,
	}
	cfg.Thresholds.TargetAnnualReturn = f.TargetAnnualReturn
	cfg.Thresholds.MaxDrawdown = f.MaxDrawdown
	cfg.Thresholds.MinSharpe = f.MinSharpe
	cfg.Thresholds.MinProfitFactor = f.MinProfitFactor
	cfg.Thresholds.MinTrades = f.MinTrades
	cfg.Thresholds.MinWinRate = f.MinWinRate
	cfg.Thresholds.MaxVolatility = f.MaxVolatility
	cfg.RiskThresholds = analysis.RiskThresholds{
		Conservative: f.RiskThresholds.Conservative,
		Moderate:     f.RiskThresholds.Moderate,
		Aggressive:   f.RiskThresholds.Aggressive,
	}
	return cfg
}
