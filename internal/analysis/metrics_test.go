package analysis

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMissingInputsAreNeutral(t *testing.T) {
	calc := NewMetricsCalculator(0.02)

	for name, backtest := range map[string]map[string]interface{}{
		"nil":   nil,
		"empty": {},
		"junk":  {"total_trades": "many", "daily_returns": "n/a", "sharpe_ratio": []int{1}},
	} {
		t.Run(name, func(t *testing.T) {
			m := calc.Calculate(nil, backtest)
			assert.Equal(t, 0.0, m.WinRate)
			assert.Equal(t, 0.0, m.AvgTradeReturn)
			assert.Equal(t, 0.0, m.CalmarRatio)
			assert.Equal(t, 0.0, m.Skewness)
			assert.Equal(t, 3.0, m.Kurtosis)
			assert.Equal(t, 0.0, m.VaR95)
			assert.Equal(t, 1.0, m.ProfitFactor)
			assert.Equal(t, 0.0, m.MaxDrawdown)
			assert.Equal(t, 0.0, m.SortinoRatio)
			assert.Equal(t, TradingDaysPerYear, m.BacktestDays)
			assert.Nil(t, m.OutOfSampleRatio)
		})
	}
}

func TestCalculateZeroTradesAvoidsDivision(t *testing.T) {
	calc := NewMetricsCalculator(0)
	m := calc.Calculate(nil, map[string]interface{}{
		"total_trades":      0,
		"profitable_trades": 5,
		"total_return":      0.12,
	})

	assert.Equal(t, 0, m.TotalTrades)
	assert.Equal(t, 0.0, m.WinRate)
	assert.Equal(t, 0.0, m.AvgTradeReturn)
	assert.Equal(t, 0.0, m.TradeFrequency)
}

func TestCalculateTradeStatistics(t *testing.T) {
	calc := NewMetricsCalculator(0)
	m := calc.Calculate(nil, map[string]interface{}{
		"total_trades":      100,
		"profitable_trades": 60,
		"total_return":      0.25,
		"backtest_days":     126,
	})

	assert.InDelta(t, 0.6, m.WinRate, 1e-9)
	assert.InDelta(t, 0.0025, m.AvgTradeReturn, 1e-9)
	assert.InDelta(t, 0.5, m.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 200.0, m.TradeFrequency, 1e-9)
}

func TestCalculateAnnualizationDefaultsToOneYear(t *testing.T) {
	m := NewMetricsCalculator(0).Calculate(nil, map[string]interface{}{"total_return": 0.1})
	assert.InDelta(t, 0.1, m.AnnualizedReturn, 1e-12)
}

func TestCalculateAnnualizationFromDates(t *testing.T) {
	calc := NewMetricsCalculator(0)

	m := calc.Calculate(nil, map[string]interface{}{
		"total_return": 0.1,
		"start_date":   "2024-01-01",
		"end_date":     "2024-07-01",
	})
	assert.InDelta(t, 125.66, m.BacktestDays, 0.01)
	assert.InDelta(t, 0.2, m.AnnualizedReturn, 0.01)

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	m = calc.Calculate(nil, map[string]interface{}{
		"total_return": 0.1,
		"start_date":   start,
		"end_date":     start.AddDate(2, 0, 0),
	})
	assert.InDelta(t, 0.05, m.AnnualizedReturn, 0.001)
}

func TestCalculateSortino(t *testing.T) {
	calc := NewMetricsCalculator(0)

	supplied := calc.Calculate(nil, map[string]interface{}{
		"sortino_ratio": 1.7,
		"daily_returns": []float64{0.01, -0.02},
	})
	assert.Equal(t, 1.7, supplied.SortinoRatio)

	noDownside := calc.Calculate(nil, map[string]interface{}{
		"daily_returns": []float64{0.01, 0.02, 0.015},
	})
	assert.Equal(t, 10.0, noDownside.SortinoRatio)

	computed := calc.Calculate(nil, map[string]interface{}{
		"daily_returns": []float64{0.01, -0.02, 0.03, -0.01},
	})
	assert.InDelta(t, 2.51, computed.SortinoRatio, 0.01)
}

func TestCalculateDrawdownAndCalmar(t *testing.T) {
	calc := NewMetricsCalculator(0)

	m := calc.Calculate(nil, map[string]interface{}{"total_return": 0.3, "max_drawdown": 0.1})
	assert.Equal(t, -0.1, m.MaxDrawdown)
	assert.InDelta(t, 3.0, m.CalmarRatio, 1e-9)

	m = calc.Calculate(nil, map[string]interface{}{
		"daily_returns": []float64{0.10, -0.10, 0.05},
	})
	assert.InDelta(t, -0.10, m.MaxDrawdown, 1e-9)
	assert.Less(t, m.VaR95, 0.0)
}

func TestCalculateValueAtRisk(t *testing.T) {
	daily := make([]float64, 20)
	for i := range daily {
		daily[i] = float64(i)/100 - 0.10
	}
	m := NewMetricsCalculator(0).Calculate(nil, map[string]interface{}{"daily_returns": daily})
	assert.InDelta(t, -0.095, m.VaR95, 0.0051)
}

func TestCalculateHigherMoments(t *testing.T) {
	calc := NewMetricsCalculator(0)

	short := calc.Calculate(nil, map[string]interface{}{"trade_returns": []float64{0.1, 0.2}})
	assert.Equal(t, 0.0, short.Skewness)
	assert.Equal(t, 3.0, short.Kurtosis)

	three := calc.Calculate(nil, map[string]interface{}{"trade_returns": []float64{0.01, 0.02, 0.09}})
	assert.Greater(t, three.Skewness, 0.0)
	assert.Equal(t, 3.0, three.Kurtosis)

	peaked := calc.Calculate(nil, map[string]interface{}{
		"trade_returns": []float64{0, 0, 0, 0, 0, 0, 0, 1},
	})
	assert.Greater(t, peaked.Kurtosis, 3.0)

	flat := calc.Calculate(nil, map[string]interface{}{"trade_returns": []float64{0.25, 0.25, 0.25, 0.25}})
	assert.Equal(t, 0.0, flat.Skewness)
	assert.Equal(t, 3.0, flat.Kurtosis)
}

func TestCalculateFromTradeReturns(t *testing.T) {
	m := NewMetricsCalculator(0).Calculate(nil, map[string]interface{}{
		"trade_returns": []interface{}{0.02, -0.01, 0.03, -0.01},
	})
	assert.Equal(t, 4, m.TotalTrades)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 2.5, m.ProfitFactor, 1e-9)
}

func TestCalculateCapitalStrings(t *testing.T) {
	m := NewMetricsCalculator(0).Calculate(nil, map[string]interface{}{
		"initial_capital": "100000.00",
		"final_capital":   "112500.50",
	})
	assert.InDelta(t, 0.125005, m.TotalReturn, 1e-9)
}

func TestCalculateCoercesDecodedJSON(t *testing.T) {
	var backtest map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(`{"total_trades": 40, "profitable_trades": "30", "metrics": {"sharpe_ratio": 1.4}}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&backtest))

	m := NewMetricsCalculator(0).Calculate(nil, backtest)
	assert.Equal(t, 40, m.TotalTrades)
	assert.InDelta(t, 0.75, m.WinRate, 1e-9)
	assert.InDelta(t, 1.4, m.SharpeRatio, 1e-9)
}

func TestCalculateBacktestOverridesTraining(t *testing.T) {
	m := NewMetricsCalculator(0).Calculate(
		map[string]interface{}{"sharpe_ratio": 0.4, "volatility": 0.3},
		map[string]interface{}{"sharpe_ratio": 1.9},
	)
	assert.Equal(t, 1.9, m.SharpeRatio)
	assert.Equal(t, 0.3, m.Volatility)
}

func TestCalculateOutOfSampleRatio(t *testing.T) {
	m := NewMetricsCalculator(0).Calculate(
		map[string]interface{}{"in_sample_return": 0.2},
		map[string]interface{}{"out_of_sample_return": 0.1},
	)
	require.NotNil(t, m.OutOfSampleRatio)
	assert.InDelta(t, 0.5, *m.OutOfSampleRatio, 1e-9)
	assert.Contains(t, m.ToMap(), "out_of_sample_ratio")
}
