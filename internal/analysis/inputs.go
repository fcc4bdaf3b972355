package analysis

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Keys read from raw training and backtest result maps.
const (
	keyTotalReturn       = "total_return"
	keyVolatility        = "volatility"
	keySharpeRatio       = "sharpe_ratio"
	keySortinoRatio      = "sortino_ratio"
	keyMaxDrawdown       = "max_drawdown"
	keyProfitFactor      = "profit_factor"
	keyTotalTrades       = "total_trades"
	keyProfitableTrades  = "profitable_trades"
	keyWinningTrades     = "winning_trades"
	keyWinRate           = "win_rate"
	keyDailyReturns      = "daily_returns"
	keyTradeReturns      = "trade_returns"
	keyBacktestDays      = "backtest_days"
	keyStartDate         = "start_date"
	keyEndDate           = "end_date"
	keyInitialCapital    = "initial_capital"
	keyFinalCapital      = "final_capital"
	keyInSampleReturn    = "in_sample_return"
	keyOutOfSampleReturn = "out_of_sample_return"
	keyNestedMetrics     = "metrics"
)

// rawResults is a loosely typed result map produced by the platform.
type rawResults map[string]interface{}

// mergeResults flattens training then backtest output into one lookup table.
// Backtest values win on conflict; a nested "metrics" map is lifted to the top level.
func mergeResults(sources ...map[string]interface{}) rawResults {
	merged := rawResults{}
	for _, src := range sources {
		if nested, ok := src[keyNestedMetrics].(map[string]interface{}); ok {
			for k, v := range nested {
				merged[k] = v
			}
		}
		for k, v := range src {
			if k == keyNestedMetrics {
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

func (r rawResults) float(keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := r[key]; ok {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func (r rawResults) decimal(key string) (decimal.Decimal, bool) {
	v, ok := r[key]
	if !ok {
		return decimal.Zero, false
	}
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	}
}

func (r rawResults) floats(key string) []float64 {
	v, ok := r[key]
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []float64:
		return append([]float64(nil), val...)
	case []interface{}:
		out := make([]float64, 0, len(val))
		for _, item := range val {
			if f, ok := toFloat(item); ok {
				out = append(out, f)
			}
		}
		return out
	default:
		return nil
	}
}

func (r rawResults) time(key string) (time.Time, bool) {
	v, ok := r[key]
	if !ok {
		return time.Time{}, false
	}
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// toFloat coerces JSON-decoded and native numeric values.
// Strings go through decimal so "1e-3" and "100000.50" both parse.
func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case decimal.Decimal:
		return val.InexactFloat64(), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	default:
		return 0, false
	}
}
