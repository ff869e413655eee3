package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"SignalDesk/internal/domain/models"
)

const (
	BollingerPeriod = 20
	BollingerK      = 2.0
	ATRPeriod       = 14
)

// StdDev returns the population standard deviation of the last period values
// (all values when fewer are available).
func StdDev(values []float64, period int) float64 {
	if len(values) < 2 {
		return 0
	}
	return last(talib.StdDev(values, window(period, len(values)), 1))
}

// Bollinger returns bands at k standard deviations around the SMA. Upper >= Middle >= Lower.
func Bollinger(values []float64, period int, k float64) models.BollingerBands {
	if len(values) < 2 {
		mid := SMA(values, period)
		return models.BollingerBands{Upper: mid, Middle: mid, Lower: mid}
	}
	dev := math.Abs(k)
	upper, middle, lower := talib.BBands(values, window(period, len(values)), dev, dev, talib.SMA)
	return models.BollingerBands{Upper: last(upper), Middle: last(middle), Lower: last(lower)}
}

// ATR is the simple mean of the last period true ranges.
// A single bar yields its high-low range; empty input yields 0.
func ATR(bars []models.PriceBar, period int) float64 {
	switch len(bars) {
	case 0:
		return 0
	case 1:
		return bars[0].High - bars[0].Low
	}
	// talib.Atr smooths Wilder-style; a plain SMA over TRange keeps the simple mean.
	tr := talib.TRange(
		column(bars, func(b models.PriceBar) float64 { return b.High }),
		column(bars, func(b models.PriceBar) float64 { return b.Low }),
		models.Closes(bars),
	)[1:]
	return last(talib.Sma(tr, window(period, len(tr))))
}
