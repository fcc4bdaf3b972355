// Package analysis turns raw platform output into scored, comparable experiment results.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily series.
const TradingDaysPerYear = 252.0

// Neutral values used when an input is missing or too short to measure.
const (
	neutralProfitFactor = 1.0
	neutralKurtosis     = 3.0
	noDownsideSortino   = 10.0
	calendarDaysPerYear = 365.0
)

// PerformanceMetrics is a complete snapshot of a strategy's backtest statistics.
// Every field always holds a value; missing inputs become neutral defaults.
type PerformanceMetrics struct {
	TotalReturn      float64  `json:"total_return"`
	AnnualizedReturn float64  `json:"annualized_return"`
	Volatility       float64  `json:"volatility"`
	SharpeRatio      float64  `json:"sharpe_ratio"`
	SortinoRatio     float64  `json:"sortino_ratio"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	CalmarRatio      float64  `json:"calmar_ratio"`
	ProfitFactor     float64  `json:"profit_factor"`
	WinRate          float64  `json:"win_rate"`
	TotalTrades      int      `json:"total_trades"`
	AvgTradeReturn   float64  `json:"avg_trade_return"`
	VaR95            float64  `json:"var_95"`
	Skewness         float64  `json:"skewness"`
	Kurtosis         float64  `json:"kurtosis"`
	TradeFrequency   float64  `json:"trade_frequency"`
	BacktestDays     float64  `json:"backtest_days"`
	OutOfSampleRatio *float64 `json:"out_of_sample_ratio,omitempty"`
}

// NeutralMetrics returns the metrics of a strategy about which nothing is known.
func NeutralMetrics() PerformanceMetrics {
	return PerformanceMetrics{
		ProfitFactor: neutralProfitFactor,
		Kurtosis:     neutralKurtosis,
		BacktestDays: TradingDaysPerYear,
	}
}

// ToMap flattens the metrics for persistence in an experiment results blob.
func (m PerformanceMetrics) ToMap() map[string]float64 {
	out := map[string]float64{
		"total_return":      m.TotalReturn,
		"annualized_return": m.AnnualizedReturn,
		"volatility":        m.Volatility,
		"sharpe_ratio":      m.SharpeRatio,
		"sortino_ratio":     m.SortinoRatio,
		"max_drawdown":      m.MaxDrawdown,
		"calmar_ratio":      m.CalmarRatio,
		"profit_factor":     m.ProfitFactor,
		"win_rate":          m.WinRate,
		"total_trades":      float64(m.TotalTrades),
		"avg_trade_return":  m.AvgTradeReturn,
		"var_95":            m.VaR95,
		"skewness":          m.Skewness,
		"kurtosis":          m.Kurtosis,
		"trade_frequency":   m.TradeFrequency,
		"backtest_days":     m.BacktestDays,
	}
	if m.OutOfSampleRatio != nil {
		out["out_of_sample_ratio"] = *m.OutOfSampleRatio
	}
	return out
}

// MetricsCalculator derives PerformanceMetrics from raw training and backtest maps.
type MetricsCalculator struct {
	riskFreeRate float64
}

// NewMetricsCalculator creates a calculator using an annual risk-free rate.
func NewMetricsCalculator(riskFreeRate float64) *MetricsCalculator {
	return &MetricsCalculator{riskFreeRate: riskFreeRate}
}

// Calculate never fails: absent or malformed inputs fall back to neutral values.
func (c *MetricsCalculator) Calculate(trainingResults, backtestResults map[string]interface{}) PerformanceMetrics {
	in := mergeResults(trainingResults, backtestResults)
	daily := in.floats(keyDailyReturns)
	trades := in.floats(keyTradeReturns)

	m := NeutralMetrics()
	m.BacktestDays = backtestDays(in)
	m.TotalReturn = totalReturn(in, daily)
	m.AnnualizedReturn = m.TotalReturn * (TradingDaysPerYear / m.BacktestDays)

	if v, ok := in.float(keyTotalTrades); ok && v > 0 {
		m.TotalTrades = int(v)
	} else {
		m.TotalTrades = len(trades)
	}
	m.WinRate = winRate(in, trades, m.TotalTrades)
	if m.TotalTrades > 0 {
		m.AvgTradeReturn = m.TotalReturn / float64(m.TotalTrades)
	}
	m.TradeFrequency = float64(m.TotalTrades) / (m.BacktestDays / TradingDaysPerYear)

	if v, ok := in.float(keyVolatility); ok {
		m.Volatility = math.Abs(v)
	} else {
		m.Volatility = annualizedVolatility(daily)
	}
	if v, ok := in.float(keySharpeRatio); ok {
		m.SharpeRatio = v
	} else {
		m.SharpeRatio = c.sharpeRatio(daily)
	}
	if v, ok := in.float(keySortinoRatio); ok {
		m.SortinoRatio = v
	} else {
		m.SortinoRatio = c.sortinoRatio(daily)
	}
	if v, ok := in.float(keyMaxDrawdown); ok {
		m.MaxDrawdown = normalizeDrawdown(v)
	} else {
		m.MaxDrawdown = maxDrawdown(daily)
	}
	if m.MaxDrawdown != 0 {
		m.CalmarRatio = m.AnnualizedReturn / math.Abs(m.MaxDrawdown)
	}
	if v, ok := in.float(keyProfitFactor); ok && v >= 0 {
		m.ProfitFactor = v
	} else if pf, ok := profitFactor(trades); ok {
		m.ProfitFactor = pf
	}

	m.VaR95 = valueAtRisk(daily, 0.95)
	m.Skewness = skewness(trades)
	m.Kurtosis = kurtosis(trades)
	m.OutOfSampleRatio = outOfSampleRatio(trainingResults, backtestResults)
	return m
}

// backtestDays prefers an explicit length, then the calendar span between
// start and end dates converted to trading days, then a one-year placeholder.
func backtestDays(in rawResults) float64 {
	if v, ok := in.float(keyBacktestDays); ok && v > 0 {
		return v
	}
	start, okStart := in.time(keyStartDate)
	end, okEnd := in.time(keyEndDate)
	if okStart && okEnd && end.After(start) {
		calendarDays := end.Sub(start).Hours() / 24
		return calendarDays * TradingDaysPerYear / calendarDaysPerYear
	}
	return TradingDaysPerYear
}

func totalReturn(in rawResults, daily []float64) float64 {
	if v, ok := in.float(keyTotalReturn); ok {
		return v
	}
	initial, okInitial := in.decimal(keyInitialCapital)
	final, okFinal := in.decimal(keyFinalCapital)
	if okInitial && okFinal && initial.IsPositive() {
		return final.Sub(initial).Div(initial).InexactFloat64()
	}
	if len(daily) > 0 {
		growth := 1.0
		for _, r := range daily {
			growth *= 1 + r
		}
		return growth - 1
	}
	return 0
}

func winRate(in rawResults, trades []float64, totalTrades int) float64 {
	if totalTrades == 0 {
		return 0
	}
	if v, ok := in.float(keyProfitableTrades, keyWinningTrades); ok {
		return clamp(v/float64(totalTrades), 0, 1)
	}
	if v, ok := in.float(keyWinRate); ok {
		return clamp(v, 0, 1)
	}
	if len(trades) > 0 {
		wins := 0
		for _, r := range trades {
			if r > 0 {
				wins++
			}
		}
		return float64(wins) / float64(totalTrades)
	}
	return 0
}

func annualizedVolatility(daily []float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	return stat.StdDev(daily, nil) * math.Sqrt(TradingDaysPerYear)
}

func (c *MetricsCalculator) sharpeRatio(daily []float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	std := stat.StdDev(daily, nil)
	if std == 0 {
		return 0
	}
	return (stat.Mean(daily, nil) - c.riskFreeRate/TradingDaysPerYear) / std * math.Sqrt(TradingDaysPerYear)
}

// sortinoRatio returns 0 without data and a fixed sentinel when no excess return is negative.
func (c *MetricsCalculator) sortinoRatio(daily []float64) float64 {
	if len(daily) == 0 {
		return 0
	}
	dailyRiskFree := c.riskFreeRate / TradingDaysPerYear
	excess := make([]float64, len(daily))
	var downsideSquares float64
	negatives := 0
	for i, r := range daily {
		excess[i] = r - dailyRiskFree
		if excess[i] < 0 {
			downsideSquares += excess[i] * excess[i]
			negatives++
		}
	}
	if negatives == 0 {
		return noDownsideSortino
	}
	downsideDeviation := math.Sqrt(downsideSquares/float64(negatives)) * math.Sqrt(TradingDaysPerYear)
	if downsideDeviation == 0 {
		return noDownsideSortino
	}
	return stat.Mean(excess, nil) * TradingDaysPerYear / downsideDeviation
}

// maxDrawdown walks the compounded equity curve; the result is zero or negative.
func maxDrawdown(daily []float64) float64 {
	equity, peak, worst := 1.0, 1.0, 0.0
	for _, r := range daily {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := (equity - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

func normalizeDrawdown(v float64) float64 {
	if v > 0 {
		return -v
	}
	return v
}

// profitFactor caps a loss-free record so downstream ratios stay finite.
func profitFactor(trades []float64) (float64, bool) {
	if len(trades) == 0 {
		return 0, false
	}
	var grossProfit, grossLoss float64
	for _, r := range trades {
		if r > 0 {
			grossProfit += r
		} else {
			grossLoss -= r
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return 999, true
		}
		return neutralProfitFactor, true
	}
	return grossProfit / grossLoss, true
}

// valueAtRisk is the lower percentile of daily returns at the given confidence.
func valueAtRisk(daily []float64, confidence float64) float64 {
	if len(daily) == 0 {
		return 0
	}
	sorted := append([]float64(nil), daily...)
	sort.Float64s(sorted)
	return stat.Quantile(1-confidence, stat.Empirical, sorted, nil)
}

func skewness(trades []float64) float64 {
	if len(trades) < 3 {
		return 0
	}
	s := stat.Skew(trades, nil)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// kurtosis is reported as raw (non-excess) kurtosis so 3.0 means Gaussian.
func kurtosis(trades []float64) float64 {
	if len(trades) < 4 {
		return neutralKurtosis
	}
	k := stat.ExKurtosis(trades, nil)
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return neutralKurtosis
	}
	return k + 3
}

func outOfSampleRatio(trainingResults, backtestResults map[string]interface{}) *float64 {
	training := mergeResults(trainingResults)
	backtest := mergeResults(backtestResults)
	inSample, ok := training.float(keyInSampleReturn, keyTotalReturn)
	if !ok || inSample == 0 {
		return nil
	}
	outSample, ok := backtest.float(keyOutOfSampleReturn)
	if !ok {
		return nil
	}
	ratio := outSample / inSample
	return &ratio
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
