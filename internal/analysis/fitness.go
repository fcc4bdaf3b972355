package analysis

import (
	"errors"
	"fmt"
	"math"
)

// Fitness score bounds.
const (
	MinFitness = 0.0
	MaxFitness = 5.0
	// penaltyFloor keeps penalties alone from zeroing a strategy.
	penaltyFloor = 0.1
)

// ErrInvalidWeights is returned when fitness weights do not sum to one.
var ErrInvalidWeights = errors.New("fitness weights must sum to 1.0")

// RiskProfile is a coarse classification of a strategy's risk
type RiskProfile string

const (
	RiskProfileConservative RiskProfile = "conservative"
	RiskProfileModerate     RiskProfile = "moderate"
	RiskProfileAggressive   RiskProfile = "aggressive"
	RiskProfileSpeculative  RiskProfile = "speculative"
	RiskProfileUnknown      RiskProfile = "unknown"
)

// FitnessWeights controls how much each component contributes
type FitnessWeights struct {
	Return      float64 `json:"return"`
	Risk        float64 `json:"risk"`
	Consistency float64 `json:"consistency"`
	Efficiency  float64 `json:"efficiency"`
	Robustness  float64 `json:"robustness"`
}

// Sum returns the total of all weights
func (w FitnessWeights) Sum() float64 {
	return w.Return + w.Risk + w.Consistency + w.Efficiency + w.Robustness
}

// Validate checks the weights form a convex combination
func (w FitnessWeights) Validate() error {
	for _, v := range []float64{w.Return, w.Risk, w.Consistency, w.Efficiency, w.Robustness} {
		if v < 0 {
			return fmt.Errorf("%w: negative weight %.4f", ErrInvalidWeights, v)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("%w: got %.6f", ErrInvalidWeights, w.Sum())
	}
	return nil
}

// Thresholds are the acceptance limits shared by scoring and analysis.
type Thresholds struct {
	TargetAnnualReturn float64 `json:"target_annual_return"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	MinSharpe          float64 `json:"min_sharpe"`
	MinProfitFactor    float64 `json:"min_profit_factor"`
	MinTrades          int     `json:"min_trades"`
	MinWinRate         float64 `json:"min_win_rate"`
	MaxVolatility      float64 `json:"max_volatility"`
	MinTradeFrequency  float64 `json:"min_trade_frequency"`
	MaxTradeFrequency  float64 `json:"max_trade_frequency"`
	TargetTradeReturn  float64 `json:"target_trade_return"`
}

// RiskThresholds bucket the blended risk measure into profiles
type RiskThresholds struct {
	Conservative float64 `json:"conservative"`
	Moderate     float64 `json:"moderate"`
	Aggressive   float64 `json:"aggressive"`
}

// FitnessConfig holds everything the scorer needs
type FitnessConfig struct {
	Weights        FitnessWeights `json:"weights"`
	Thresholds     Thresholds     `json:"thresholds"`
	RiskThresholds RiskThresholds `json:"risk_thresholds"`
}

// DefaultFitnessConfig returns the standard weights and limits
func DefaultFitnessConfig() FitnessConfig {
	return FitnessConfig{
		Weights: FitnessWeights{
			Return:      0.25,
			Risk:        0.25,
			Consistency: 0.20,
			Efficiency:  0.15,
			Robustness:  0.15,
		},
		Thresholds: Thresholds{
			TargetAnnualReturn: 0.15,
			MaxDrawdown:        0.20,
			MinSharpe:          0.5,
			MinProfitFactor:    1.1,
			MinTrades:          30,
			MinWinRate:         0.40,
			MaxVolatility:      0.50,
			MinTradeFrequency:  12,
			MaxTradeFrequency:  1000,
			TargetTradeReturn:  0.005,
		},
		RiskThresholds: RiskThresholds{
			Conservative: 0.15,
			Moderate:     0.25,
			Aggressive:   0.40,
		},
	}
}

// FitnessComponents are the bounded sub-scores and the penalty multiplier
type FitnessComponents struct {
	Return      float64 `json:"return"`
	Risk        float64 `json:"risk"`
	Consistency float64 `json:"consistency"`
	Efficiency  float64 `json:"efficiency"`
	Robustness  float64 `json:"robustness"`
	Penalty     float64 `json:"penalty"`
}

// ToMap flattens the components for persistence
func (c FitnessComponents) ToMap() map[string]float64 {
	return map[string]float64{
		"return":      c.Return,
		"risk":        c.Risk,
		"consistency": c.Consistency,
		"efficiency":  c.Efficiency,
		"robustness":  c.Robustness,
		"penalty":     c.Penalty,
	}
}

// FitnessResult is the output of one scoring pass
type FitnessResult struct {
	Score       float64           `json:"score"`
	Components  FitnessComponents `json:"components"`
	RiskProfile RiskProfile       `json:"risk_profile"`
}

// FitnessScorer maps metrics to a bounded fitness score. It holds no mutable state.
type FitnessScorer struct {
	cfg FitnessConfig
}

// NewFitnessScorer validates the weights and builds a scorer
func NewFitnessScorer(cfg FitnessConfig) (*FitnessScorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	return &FitnessScorer{cfg: cfg}, nil
}

// Config returns the scorer configuration
func (s *FitnessScorer) Config() FitnessConfig {
	return s.cfg
}

// Score computes the weighted, penalized fitness of m
func (s *FitnessScorer) Score(m PerformanceMetrics) FitnessResult {
	c := FitnessComponents{
		Return:      s.returnScore(m),
		Risk:        s.riskScore(m),
		Consistency: s.consistencyScore(m),
		Efficiency:  s.efficiencyScore(m),
		Robustness:  s.robustnessScore(m),
		Penalty:     s.penalty(m),
	}

	w := s.cfg.Weights
	weighted := c.Return*w.Return +
		c.Risk*w.Risk +
		c.Consistency*w.Consistency +
		c.Efficiency*w.Efficiency +
		c.Robustness*w.Robustness

	return FitnessResult{
		Score:       clamp(weighted*c.Penalty, MinFitness, MaxFitness),
		Components:  c,
		RiskProfile: s.ClassifyRisk(m),
	}
}

// ClassifyRisk buckets a blend of volatility, drawdown and inverse Sharpe
func (s *FitnessScorer) ClassifyRisk(m PerformanceMetrics) RiskProfile {
	inverseSharpe := 1 / (1 + math.Max(m.SharpeRatio, 0))
	blend := 0.4*math.Abs(m.Volatility) + 0.4*math.Abs(m.MaxDrawdown) + 0.2*inverseSharpe

	rt := s.cfg.RiskThresholds
	switch {
	case blend < rt.Conservative:
		return RiskProfileConservative
	case blend < rt.Moderate:
		return RiskProfileModerate
	case blend < rt.Aggressive:
		return RiskProfileAggressive
	default:
		return RiskProfileSpeculative
	}
}

// returnScore is log-dampened above twice the target.
func (s *FitnessScorer) returnScore(m PerformanceMetrics) float64 {
	target := s.cfg.Thresholds.TargetAnnualReturn
	if target <= 0 {
		return 0
	}
	ratio := m.AnnualizedReturn / target
	if ratio > 2 {
		ratio = 2 + math.Log1p(ratio-2)
	}
	return clamp(ratio, 0, 3)
}

func (s *FitnessScorer) riskScore(m PerformanceMetrics) float64 {
	drawdownScore := 0.0
	if limit := s.cfg.Thresholds.MaxDrawdown; limit > 0 {
		drawdownScore = math.Max(0, 1-math.Abs(m.MaxDrawdown)/limit)
	}
	score := 0.5*(m.SharpeRatio/2) +
		0.3*drawdownScore +
		0.2*(1/(1+math.Abs(m.Volatility)))
	return clamp(score, 0, 2)
}

func (s *FitnessScorer) consistencyScore(m PerformanceMetrics) float64 {
	profitFactorScore := clamp(m.ProfitFactor/2, 0, 2)
	score := 0.4*(m.WinRate*2) +
		0.4*profitFactorScore +
		0.2*(m.SortinoRatio/3)
	return clamp(score, 0, 2)
}

// efficiencyScore blends trade frequency adequacy, per-trade edge and sample size.
func (s *FitnessScorer) efficiencyScore(m PerformanceMetrics) float64 {
	t := s.cfg.Thresholds

	var frequency float64
	switch {
	case m.TradeFrequency <= 0:
		frequency = 0
	case m.TradeFrequency < t.MinTradeFrequency:
		frequency = m.TradeFrequency / t.MinTradeFrequency
	case m.TradeFrequency <= t.MaxTradeFrequency:
		frequency = 1
	default:
		frequency = t.MaxTradeFrequency / m.TradeFrequency
	}

	magnitude := 0.0
	if t.TargetTradeReturn > 0 {
		magnitude = clamp(m.AvgTradeReturn/t.TargetTradeReturn, 0, 1)
	}

	sample := 0.0
	if t.MinTrades > 0 {
		sample = clamp(float64(m.TotalTrades)/float64(2*t.MinTrades), 0, 1)
	}

	return clamp(2*(0.5*frequency+0.3*magnitude+0.2*sample), 0, 2)
}

// robustnessScore rewards symmetric, thin-tailed returns that hold up out of sample.
func (s *FitnessScorer) robustnessScore(m PerformanceMetrics) float64 {
	skew := 1 / (1 + math.Abs(m.Skewness))
	excessKurtosis := 1 / (1 + math.Abs(m.Kurtosis-neutralKurtosis))
	tailLoss := 1 / (1 + 20*math.Abs(m.VaR95))

	outOfSample := 1.0
	if m.OutOfSampleRatio != nil {
		outOfSample = clamp(*m.OutOfSampleRatio, 0, 1)
	}

	return clamp(2*(0.2*skew+0.2*excessKurtosis+0.3*tailLoss+0.3*outOfSample), 0, 2)
}

// penalty compounds a multiplier for each violated limit.
func (s *FitnessScorer) penalty(m PerformanceMetrics) float64 {
	t := s.cfg.Thresholds
	p := 1.0
	if math.Abs(m.MaxDrawdown) > t.MaxDrawdown {
		p *= 0.5
	}
	if m.SharpeRatio < t.MinSharpe {
		p *= 0.7
	}
	if m.ProfitFactor < t.MinProfitFactor {
		p *= 0.8
	}
	if m.TotalTrades < t.MinTrades {
		p *= 0.6
	}
	if math.Abs(m.Volatility) > t.MaxVolatility {
		p *= 0.7
	}
	return math.Max(p, penaltyFloor)
}
