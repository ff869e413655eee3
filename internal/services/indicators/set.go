// Package indicators holds pure technical-analysis functions over ascending price bars.
// None of them fail on short input; each documents its neutral fallback.
package indicators

import "SignalDesk/internal/domain/models"

// Compute assembles the full indicator set for the latest bar.
// SMA200 is only present with at least 200 bars.
func Compute(bars []models.PriceBar) models.IndicatorSet {
	closes := models.Closes(bars)
	set := models.IndicatorSet{
		SMA20:      SMA(closes, 20),
		SMA50:      SMA(closes, 50),
		RSI:        RSI(closes, RSIPeriod),
		MACD:       MACD(closes),
		Bollinger:  Bollinger(closes, BollingerPeriod, BollingerK),
		Stochastic: Stochastic(bars, StochasticPeriod, StochasticD),
		ATR:        ATR(bars, ATRPeriod),
	}
	if len(closes) >= 200 {
		v := SMA(closes, 200)
		set.SMA200 = &v
	}
	return set
}
