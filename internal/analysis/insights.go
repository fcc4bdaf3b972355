package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/yourusername/research-lab/internal/models"
)

// topTierFitness marks a strategy worth promoting to paper trading.
const topTierFitness = 2.0

// findings accumulates the narrative output of one analysis pass.
type findings struct {
	insights        []string
	warnings        []string
	recommendations []string
}

func (f *findings) insight(format string, args ...interface{}) {
	f.insights = append(f.insights, fmt.Sprintf(format, args...))
}

func (f *findings) warn(warning, recommendation string) {
	f.warnings = append(f.warnings, warning)
	f.recommendations = append(f.recommendations, recommendation)
}

// describeSuccess produces threshold-triggered insights, warnings and recommendations.
func describeSuccess(m PerformanceMetrics, fitness FitnessResult, t Thresholds) findings {
	var f findings

	switch {
	case m.SharpeRatio > 2.0:
		f.insight("Excellent risk-adjusted returns (Sharpe %.2f)", m.SharpeRatio)
	case m.SharpeRatio > 1.0:
		f.insight("Good risk-adjusted returns (Sharpe %.2f)", m.SharpeRatio)
	}
	if m.TotalTrades > 0 && math.Abs(m.MaxDrawdown) < 0.05 {
		f.insight("Low drawdown (%.1f%%)", m.MaxDrawdown*100)
	}
	if m.WinRate > 0.6 {
		f.insight("High win rate (%.1f%%)", m.WinRate*100)
	}
	if m.ProfitFactor > 2.0 {
		f.insight("Strong profit factor (%.2f)", m.ProfitFactor)
	}
	if t.TargetAnnualReturn > 0 && m.AnnualizedReturn > t.TargetAnnualReturn {
		f.insight("Annualized return %.1f%% exceeds the %.1f%% target", m.AnnualizedReturn*100, t.TargetAnnualReturn*100)
	}
	if m.SortinoRatio > 2.0 {
		f.insight("Downside volatility well contained (Sortino %.2f)", m.SortinoRatio)
	}
	if m.CalmarRatio > 3.0 {
		f.insight("Strong return relative to drawdown (Calmar %.2f)", m.CalmarRatio)
	}
	f.insight("Fitness %.2f with %s risk profile", fitness.Score, fitness.RiskProfile)

	if m.SharpeRatio < t.MinSharpe {
		f.warn(
			fmt.Sprintf("Sharpe ratio %.2f is below the minimum of %.2f", m.SharpeRatio, t.MinSharpe),
			"Improve signal quality or add entry filters to raise risk-adjusted returns",
		)
	}
	if math.Abs(m.MaxDrawdown) > t.MaxDrawdown {
		f.warn(
			fmt.Sprintf("Max drawdown %.1f%% exceeds the %.1f%% limit", math.Abs(m.MaxDrawdown)*100, t.MaxDrawdown*100),
			"Tighten stop-losses or reduce position sizing to contain drawdown",
		)
	}
	if m.WinRate < t.MinWinRate {
		f.warn(
			fmt.Sprintf("Win rate %.1f%% is below the minimum of %.1f%%", m.WinRate*100, t.MinWinRate*100),
			"Review entry criteria to improve the win rate",
		)
	}
	if m.ProfitFactor < t.MinProfitFactor {
		f.warn(
			fmt.Sprintf("Profit factor %.2f is below the minimum of %.2f", m.ProfitFactor, t.MinProfitFactor),
			"Let winners run and cut losers earlier to lift the profit factor",
		)
	}
	if m.TotalTrades < t.MinTrades {
		f.warn(
			fmt.Sprintf("Only %d trades; at least %d are needed for statistical significance", m.TotalTrades, t.MinTrades),
			"Extend the backtest period or relax entry conditions to gather more trades",
		)
	}
	if m.Volatility > t.MaxVolatility {
		f.warn(
			fmt.Sprintf("Volatility %.1f%% exceeds the %.1f%% limit", m.Volatility*100, t.MaxVolatility*100),
			"Reduce leverage or position size to lower volatility",
		)
	}
	if m.Skewness < -1.0 {
		f.warn(
			fmt.Sprintf("Negative skew in trade returns (%.2f) indicates tail risk", m.Skewness),
			"Add tail hedges or cap single-trade losses",
		)
	}
	if m.Kurtosis-neutralKurtosis > 3.0 {
		f.warn(
			fmt.Sprintf("Fat-tailed trade returns (kurtosis %.2f)", m.Kurtosis),
			"Stress-test the strategy against extreme market moves",
		)
	}
	if m.OutOfSampleRatio != nil && *m.OutOfSampleRatio < 0.5 {
		f.warn(
			fmt.Sprintf("Out-of-sample return is %.0f%% of in-sample return", *m.OutOfSampleRatio*100),
			"Reduce parameter count or regularize to address likely overfitting",
		)
	}

	if len(f.warnings) == 0 {
		if fitness.Score >= topTierFitness {
			f.recommendations = append(f.recommendations, "Promote to out-of-sample validation and paper trading")
		} else {
			f.recommendations = append(f.recommendations, "Explore parameter refinements around this configuration")
		}
	}
	return f
}

// failureCategory is the recommendation family chosen for a failed experiment.
type failureCategory int

const (
	failureUnclassified failureCategory = iota
	failureTimeout
	failureNetwork
	failureParameter
)

var failureKeywords = []struct {
	category failureCategory
	keywords []string
}{
	{failureTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{failureNetwork, []string{"network", "connection", "unreachable"}},
	{failureParameter, []string{"parameter", "config", "invalid"}},
}

// classifyFailure trusts the structured cause and falls back to keywords in the message.
func classifyFailure(info *models.ErrorInfo) failureCategory {
	if info == nil {
		return failureUnclassified
	}
	switch info.Cause {
	case models.ErrorCauseTimeout:
		return failureTimeout
	case models.ErrorCauseNetwork:
		return failureNetwork
	case models.ErrorCauseParameter:
		return failureParameter
	}

	message := strings.ToLower(info.Message)
	for _, group := range failureKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(message, kw) {
				return group.category
			}
		}
	}
	return failureUnclassified
}

// describeFailure guarantees at least one insight and one recommendation.
func describeFailure(status models.ExperimentStatus, info *models.ErrorInfo) findings {
	var f findings
	f.insight("Experiment ended with status %s", status)

	if info == nil {
		f.recommendations = append(f.recommendations, "Re-run the experiment and inspect its logs; no error details were recorded")
		return f
	}

	if info.Phase != "" {
		f.insight("Failed during %s phase after %.0fs: %s", info.Phase, info.ElapsedSeconds, info.Message)
	} else {
		f.insight("Error: %s", info.Message)
	}

	switch info.Kind {
	case models.ErrorKindCancelled:
		f.recommendations = append(f.recommendations, "Re-run the experiment if the cancellation was unintended")
		return f
	case models.ErrorKindSystemInterruption:
		f.recommendations = append(f.recommendations, "Restart the experiment; it was interrupted by a process restart")
		return f
	}

	switch classifyFailure(info) {
	case failureTimeout:
		f.recommendations = append(f.recommendations,
			"Increase the experiment timeout",
			"Simplify the model configuration or shorten the data window",
		)
	case failureNetwork:
		f.recommendations = append(f.recommendations,
			"Check connectivity to the training platform",
			"Retry the experiment once the platform is reachable",
		)
	case failureParameter:
		f.recommendations = append(f.recommendations,
			"Validate hypothesis-generated parameters before submission",
			"Check the experiment configuration against the platform schema",
		)
	default:
		f.recommendations = append(f.recommendations, "Inspect the experiment logs for the root cause before re-running")
	}
	return f
}
