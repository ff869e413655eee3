package indicators

import (
	talib "github.com/markcheno/go-talib"

	"SignalDesk/internal/domain/models"
)

// Default lookbacks used by Compute.
const (
	RSIPeriod        = 14
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignal       = 9
	StochasticPeriod = 14
	StochasticD      = 3
)

// RSI computes the Wilder-smoothed relative strength index.
// Returns 50 when there are fewer than period+1 values or period is below 2,
// and 100 when there were no losses.
func RSI(values []float64, period int) float64 {
	if period < 2 || len(values) < period+1 {
		return 50
	}
	// Wilder averages only reach zero when no bar ever closed lower. talib
	// reports a flat series as 0, so that case is answered here.
	if !hasLoss(values) {
		return 100
	}
	return clamp(last(talib.Rsi(values, period)), 0, 100)
}

func hasLoss(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return true
		}
	}
	return false
}

// MACD computes the 12/26/9 MACD. The histogram is always line minus signal.
func MACD(values []float64) models.MACD {
	line := macdLineSeries(values)
	if len(line) == 0 {
		l := EMA(values, MACDFast) - EMA(values, MACDSlow)
		return models.MACD{Line: l, Signal: l, Histogram: 0}
	}
	lineNow := last(line)
	sig := EMA(line, MACDSignal)
	return models.MACD{Line: lineNow, Signal: sig, Histogram: lineNow - sig}
}

// macdLineSeries is EMA(fast) - EMA(slow), each seeded on its own first window,
// from the first bar where the slow EMA exists. talib.Macd reseeds the fast
// EMA on the slow window, which shifts early values, so the two EMAs are
// combined here instead.
func macdLineSeries(values []float64) []float64 {
	if len(values) < MACDSlow {
		return nil
	}
	fast := talib.Ema(values, MACDFast)
	slow := talib.Ema(values, MACDSlow)
	out := make([]float64, 0, len(values)-MACDSlow+1)
	for i := MACDSlow - 1; i < len(values); i++ {
		out = append(out, fast[i]-slow[i])
	}
	return out
}

// Stochastic computes %K over period bars and %D as the SMA of the last dPeriod %K values.
// A flat high/low range yields %K = 50. With dPeriod <= 1, or fewer than dPeriod
// complete %K windows, %D equals %K. Fewer than period bars yields {50, 50}.
func Stochastic(bars []models.PriceBar, period, dPeriod int) models.Stochastic {
	if period <= 0 || len(bars) < period {
		return models.Stochastic{K: 50, D: 50}
	}
	ks := percentKSeries(bars, period)
	k := last(ks)
	if dPeriod <= 1 || len(ks) < dPeriod {
		return models.Stochastic{K: k, D: k}
	}
	return models.Stochastic{K: k, D: last(talib.Sma(ks, dPeriod))}
}

// percentKSeries returns %K for every bar from period-1 onward. The rolling
// extremes come from talib.Max and talib.Min; talib.Stoch scores a flat window
// as 0 where a neutral 50 is wanted, so %K itself is formed here.
func percentKSeries(bars []models.PriceBar, period int) []float64 {
	highs := column(bars, func(b models.PriceBar) float64 { return b.High })
	lows := column(bars, func(b models.PriceBar) float64 { return b.Low })
	hh, ll := highs, lows
	if period > 1 {
		hh, ll = talib.Max(highs, period), talib.Min(lows, period)
	}

	out := make([]float64, 0, len(bars)-period+1)
	for i := period - 1; i < len(bars); i++ {
		if hh[i] == ll[i] {
			out = append(out, 50)
			continue
		}
		out = append(out, clamp((bars[i].Close-ll[i])/(hh[i]-ll[i])*100, 0, 100))
	}
	return out
}

func column(bars []models.PriceBar, pick func(models.PriceBar) float64) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = pick(b)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
