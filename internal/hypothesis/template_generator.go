package hypothesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/research-lab/internal/models"
)

type template struct {
	name       string
	text       string
	expType    models.ExperimentType
	parameters map[string]interface{}
	confidence float64
}

var templates = []template{
	{"momentum-breakout", "Breakouts above the 20-day high persist for several sessions", models.ExperimentTypePatternDiscovery,
		map[string]interface{}{"lookback": 20, "holding_days": 5, "breakout_threshold": 0.02}, 0.62},
	{"mean-reversion-rsi", "Oversold RSI readings revert within a week", models.ExperimentTypeIndicatorOptimization,
		map[string]interface{}{"rsi_period": 14, "oversold": 30.0, "overbought": 70.0}, 0.58},
	{"volatility-regime", "Returns differ between low and high realized-volatility regimes", models.ExperimentTypeRegimeDetection,
		map[string]interface{}{"window": 30, "regimes": 2}, 0.55},
	{"fuzzy-trend", "A fuzzy trend/volatility rule base beats a fixed moving-average crossover", models.ExperimentTypeNeuroFuzzyStrategy,
		map[string]interface{}{"membership_functions": 5, "learning_rate": 0.01, "epochs": 100}, 0.5},
	{"walk-forward-check", "Parameters tuned in-sample keep their edge out of sample", models.ExperimentTypeCrossValidation,
		map[string]interface{}{"folds": 5, "train_ratio": 0.7}, 0.66},
}

// TemplateGenerator proposes hypotheses from a fixed catalogue. It is used
// when no remote generator is configured.
type TemplateGenerator struct{}

// NewTemplateGenerator creates a template generator
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate returns catalogue entries, preferring those matching the focus
func (g *TemplateGenerator) Generate(ctx context.Context, rc ResearchContext) ([]Hypothesis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	focus := strings.ToLower(rc.Focus)
	var preferred, rest []Hypothesis
	for _, t := range templates {
		params := make(map[string]interface{}, len(t.parameters))
		for k, v := range t.parameters {
			params[k] = v
		}
		h := Hypothesis{
			Name:       t.name,
			Text:       t.text,
			Type:       t.expType,
			Parameters: params,
			Confidence: t.confidence,
			Rationale:  fmt.Sprintf("catalogue hypothesis; %d prior insights available", len(rc.Insights)),
		}
		if focus != "" && (strings.Contains(string(t.expType), focus) || strings.Contains(t.name, focus)) {
			preferred = append(preferred, h)
		} else {
			rest = append(rest, h)
		}
	}

	out := append(preferred, rest...)
	if rc.MaxHypotheses > 0 && len(out) > rc.MaxHypotheses {
		out = out[:rc.MaxHypotheses]
	}
	return out, nil
}
