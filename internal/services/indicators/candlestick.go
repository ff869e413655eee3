package indicators

import (
	"math"

	"SignalDesk/internal/domain/models"
)

// Pattern is a candlestick detector evaluated on the bar at index i.
type Pattern struct {
	Name        string
	Polarity    models.Polarity
	Reliability float64
	// Bars is how many bars ending at i the detector reads.
	Bars   int
	Detect func(bars []models.PriceBar, i int) bool
}

// Patterns is the detector catalogue, ordered by name.
var Patterns = []Pattern{
	{Name: "bearish_engulfing", Polarity: models.PolarityBearish, Reliability: 0.75, Bars: 2, Detect: isBearishEngulfing},
	{Name: "bearish_harami", Polarity: models.PolarityBearish, Reliability: 0.55, Bars: 2, Detect: isBearishHarami},
	{Name: "bullish_engulfing", Polarity: models.PolarityBullish, Reliability: 0.75, Bars: 2, Detect: isBullishEngulfing},
	{Name: "bullish_harami", Polarity: models.PolarityBullish, Reliability: 0.55, Bars: 2, Detect: isBullishHarami},
	{Name: "doji", Polarity: models.PolarityNeutral, Reliability: 0.5, Bars: 1, Detect: isDoji},
	{Name: "evening_star", Polarity: models.PolarityBearish, Reliability: 0.8, Bars: 3, Detect: isEveningStar},
	{Name: "hammer", Polarity: models.PolarityBullish, Reliability: 0.6, Bars: 1, Detect: isHammer},
	{Name: "morning_star", Polarity: models.PolarityBullish, Reliability: 0.8, Bars: 3, Detect: isMorningStar},
	{Name: "shooting_star", Polarity: models.PolarityBearish, Reliability: 0.6, Bars: 1, Detect: isShootingStar},
}

func body(b models.PriceBar) float64 { return math.Abs(b.Close - b.Open) }
func barRange(b models.PriceBar) float64 { return b.High - b.Low }
func upperShadow(b models.PriceBar) float64 { return b.High - math.Max(b.Open, b.Close) }
func lowerShadow(b models.PriceBar) float64 { return math.Min(b.Open, b.Close) - b.Low }
func bullish(b models.PriceBar) bool { return b.Close > b.Open }
func bearish(b models.PriceBar) bool { return b.Close < b.Open }

func isDoji(bars []models.PriceBar, i int) bool {
	b := bars[i]
	r := barRange(b)
	return r > 0 && body(b) <= 0.1*r
}

func isHammer(bars []models.PriceBar, i int) bool {
	b := bars[i]
	bd, r := body(b), barRange(b)
	return r > 0 && bd > 0 && bd <= 0.35*r &&
		lowerShadow(b) >= 2*bd && upperShadow(b) <= bd
}

func isShootingStar(bars []models.PriceBar, i int) bool {
	b := bars[i]
	bd, r := body(b), barRange(b)
	return r > 0 && bd > 0 && bd <= 0.35*r &&
		upperShadow(b) >= 2*bd && lowerShadow(b) <= bd
}

func isBullishEngulfing(bars []models.PriceBar, i int) bool {
	if i < 1 {
		return false
	}
	p, c := bars[i-1], bars[i]
	return bearish(p) && bullish(c) &&
		c.Open <= p.Close && c.Close >= p.Open && body(c) > body(p)
}

func isBearishEngulfing(bars []models.PriceBar, i int) bool {
	if i < 1 {
		return false
	}
	p, c := bars[i-1], bars[i]
	return bullish(p) && bearish(c) &&
		c.Open >= p.Close && c.Close <= p.Open && body(c) > body(p)
}

func isBullishHarami(bars []models.PriceBar, i int) bool {
	if i < 1 {
		return false
	}
	p, c := bars[i-1], bars[i]
	return bearish(p) && bullish(c) &&
		c.Open > p.Close && c.Close < p.Open && body(c) < 0.6*body(p)
}

func isBearishHarami(bars []models.PriceBar, i int) bool {
	if i < 1 {
		return false
	}
	p, c := bars[i-1], bars[i]
	return bullish(p) && bearish(c) &&
		c.Open < p.Close && c.Close > p.Open && body(c) < 0.6*body(p)
}

func isMorningStar(bars []models.PriceBar, i int) bool {
	if i < 2 {
		return false
	}
	a, b, c := bars[i-2], bars[i-1], bars[i]
	if !bearish(a) || !bullish(c) || body(a) == 0 {
		return false
	}
	mid := (a.Open + a.Close) / 2
	return body(a) >= 0.6*barRange(a) && body(b) <= 0.3*body(a) &&
		math.Max(b.Open, b.Close) < a.Close && c.Close > mid
}

func isEveningStar(bars []models.PriceBar, i int) bool {
	if i < 2 {
		return false
	}
	a, b, c := bars[i-2], bars[i-1], bars[i]
	if !bullish(a) || !bearish(c) || body(a) == 0 {
		return false
	}
	mid := (a.Open + a.Close) / 2
	return body(a) >= 0.6*barRange(a) && body(b) <= 0.3*body(a) &&
		math.Min(b.Open, b.Close) > a.Close && c.Close < mid
}
