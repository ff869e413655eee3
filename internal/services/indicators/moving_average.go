package indicators

import talib "github.com/markcheno/go-talib"

// SMA returns the mean of the last period values.
// With fewer values than period it returns the mean of all of them; empty input yields 0.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	return last(talib.Sma(values, window(period, len(values))))
}

// EMASeries returns the EMA for every position from period-1 onward.
// The first element is the SMA seed of the first period values; nil when input is short.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	return talib.Ema(values, period)[period-1:]
}

// EMA returns the latest exponential moving average.
// Falls back to SMA when there are fewer values than period.
func EMA(values []float64, period int) float64 {
	s := EMASeries(values, period)
	if len(s) == 0 {
		return SMA(values, period)
	}
	return last(s)
}

// window clamps period to [1, n]. Non-positive periods cover all n values.
func window(period, n int) int {
	if period <= 0 || period > n {
		return n
	}
	return period
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
