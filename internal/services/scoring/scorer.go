// Package scoring turns an indicator snapshot into a direction, a directional
// score and a success-rate estimate, both on a 0-100 scale.
//
// The result is an explainable heuristic: every point is attributed to a named
// check in models.ScoreBreakdown. Scoring is pure and deterministic.
package scoring

import (
	"math"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/services/features"
)

// Directional check weights. They sum to 100.
const (
	WeightTrend       = 20.0
	WeightMAAlignment = 15.0
	WeightRSI         = 15.0
	WeightMACD        = 15.0
	WeightBollinger   = 10.0
	WeightStochastic  = 10.0
	WeightVolume      = 5.0
	WeightSentiment   = 5.0
	WeightML          = 5.0
)

// Success-rate bucket caps. They sum to 100.
const (
	BucketTrend      = 25.0
	BucketOscillator = 25.0
	BucketVolatility = 20.0
	BucketSentiment  = 15.0
	BucketPattern    = 15.0
)

// Input is everything the scorer reads for one symbol.
type Input struct {
	Indicators models.IndicatorSet
	Features   features.Snapshot
	Sentiment  models.Sentiment
	Prediction models.Prediction
	Patterns   []models.PatternMatch
}

// Scorer computes ScoreBreakdowns.
type Scorer struct{}

func New() *Scorer { return &Scorer{} }

// Score evaluates both sides, picks the stronger one (ties go to BUY) and rates
// the chosen side's likelihood of success.
func (s *Scorer) Score(in Input) models.ScoreBreakdown {
	in = sanitize(in)

	buy := directional(in, +1)
	sell := directional(in, -1)

	out := models.ScoreBreakdown{Buy: buy, Sell: sell, Patterns: in.Patterns}
	chosen, sign := buy, 1.0
	out.Direction = models.DirectionBuy
	if sell.Total() > buy.Total() {
		chosen, sign = sell, -1.0
		out.Direction = models.DirectionSell
	}

	out.Buckets = buckets(in, chosen, sign)
	out.DirectionScore = round2(clamp(chosen.Total(), 0, 100))
	out.SuccessRate = round2(clamp(out.Buckets.Total(), 0, 100))
	return out
}

func directional(in Input, sign float64) models.DirectionalScore {
	ind := in.Indicators
	price := in.Features.CurrentPrice
	ch := in.Features.Changes
	var d models.DirectionalScore

	// price trend over 5 and 20 bars
	if sign*ch.Change5 > 0 {
		d.Trend += WeightTrend / 2
	}
	if sign*ch.Change20 > 0 {
		d.Trend += WeightTrend / 2
	}

	// moving average stack
	third := WeightMAAlignment / 3
	if sign*(price-ind.SMA20) > 0 {
		d.MAAlignment += third
	}
	if sign*(ind.SMA20-ind.SMA50) > 0 {
		d.MAAlignment += third
	}
	// without 200 bars the long leg falls back to price against SMA50
	fast, slow := price, ind.SMA50
	if ind.SMA200 != nil {
		fast, slow = ind.SMA50, *ind.SMA200
	}
	if sign*(fast-slow) > 0 {
		d.MAAlignment += third
	}

	d.RSI = rsiPoints(ind.RSI, sign)

	if sign*ind.MACD.Histogram > 0 {
		d.MACD += WeightMACD * 2 / 3
	}
	if sign*ind.MACD.Line > 0 {
		d.MACD += WeightMACD / 3
	}

	bb := ind.Bollinger
	switch {
	case sign > 0 && price <= bb.Lower, sign < 0 && price >= bb.Upper:
		d.Bollinger = WeightBollinger
	case sign*(bb.Middle-price) > 0:
		d.Bollinger = WeightBollinger / 2
	}

	st := ind.Stochastic
	if (sign > 0 && st.K < 20) || (sign < 0 && st.K > 80) {
		d.Stochastic += WeightStochastic * 0.6
	}
	if sign*(st.K-st.D) > 0 {
		d.Stochastic += WeightStochastic * 0.4
	}

	if in.Features.VolumeRatio > 1.5 && sign*ch.Change1 > 0 {
		d.Volume = WeightVolume
	}

	// a confident reading counts in full, a vague one proportionally less
	d.Sentiment = WeightSentiment * math.Max(sign*in.Sentiment.Score, 0) * in.Sentiment.Magnitude

	switch {
	case sign > 0 && in.Prediction.Trend == models.TrendUp,
		sign < 0 && in.Prediction.Trend == models.TrendDown:
		d.ML = WeightML * in.Prediction.Confidence / 100
	}
	return d
}

// rsiPoints favors entries from the exhausted side: oversold for BUY, overbought for SELL.
func rsiPoints(rsi, sign float64) float64 {
	if sign < 0 {
		rsi = 100 - rsi
	}
	switch {
	case rsi < 30:
		return WeightRSI
	case rsi < 50:
		return WeightRSI * 2 / 3
	case rsi < 70:
		return WeightRSI / 3
	default:
		return 0
	}
}

func buckets(in Input, d models.DirectionalScore, sign float64) models.SuccessBuckets {
	var b models.SuccessBuckets

	b.TrendAnalysis = BucketTrend * (d.Trend/WeightTrend + d.MAAlignment/WeightMAAlignment) / 2

	b.OscillatorConfluence = BucketOscillator *
		(d.RSI/WeightRSI + d.MACD/WeightMACD + d.Stochastic/WeightStochastic) / 3

	vol := clamp((in.Features.VolumeRatio-0.5)/1.5, 0, 1)
	b.VolatilityVolume = BucketVolatility * (vol +
		atrQuality(in.Indicators.ATR, in.Features.CurrentPrice) +
		realizedVolQuality(in.Features.RealizedVol) +
		d.Bollinger/WeightBollinger) / 4

	sent := clamp(0.5+sign*in.Sentiment.Score*in.Sentiment.Magnitude/2, 0, 1)
	ml := 0.5
	conf := in.Prediction.Confidence / 100
	switch {
	case (sign > 0 && in.Prediction.Trend == models.TrendUp) || (sign < 0 && in.Prediction.Trend == models.TrendDown):
		ml = 0.5 + conf/2
	case (sign > 0 && in.Prediction.Trend == models.TrendDown) || (sign < 0 && in.Prediction.Trend == models.TrendUp):
		ml = 0.5 - conf/2
	}
	b.SentimentML = BucketSentiment * (sent + ml) / 2

	b.PatternConfluence = BucketPattern * patternConfluence(in.Patterns, sign)
	return b
}

// atrQuality prefers moderate volatility: ATR between 1% and 5% of price scores 1.
func atrQuality(atr, price float64) float64 {
	if price <= 0 || atr <= 0 {
		return 0
	}
	pct := atr / price * 100
	switch {
	case pct < 1:
		return pct
	case pct <= 5:
		return 1
	default:
		return clamp(1-(pct-5)/10, 0, 1)
	}
}

// realizedVolQuality rates annualized realized volatility (0.25 = 25%).
// 15% to 60% scores 1, quieter series scale down linearly and wilder ones
// fall to 0 at 120%. Zero means too few returns and rates a neutral 0.5.
func realizedVolQuality(rv float64) float64 {
	switch {
	case rv <= 0:
		return 0.5
	case rv < 0.15:
		return rv / 0.15
	case rv <= 0.6:
		return 1
	default:
		return clamp(1-(rv-0.6)/0.6, 0, 1)
	}
}

// patternConfluence starts at 0.5 and moves by half of reliability*accuracy
// for every aligned (up) or opposing (down) pattern. Unknown accuracy counts as 0.5.
func patternConfluence(patterns []models.PatternMatch, sign float64) float64 {
	v := 0.5
	for _, p := range patterns {
		acc := 0.5
		if p.Accuracy != nil {
			acc = *p.Accuracy
		}
		w := p.Reliability * acc / 2
		switch {
		case p.Polarity == models.PolarityBullish && sign > 0, p.Polarity == models.PolarityBearish && sign < 0:
			v += w
		case p.Polarity == models.PolarityBullish, p.Polarity == models.PolarityBearish:
			v -= w
		}
	}
	return clamp(v, 0, 1)
}

// sanitize replaces non-finite inputs with neutral values so every clamp holds.
func sanitize(in Input) Input {
	ind := &in.Indicators
	ind.SMA20 = finiteOr(ind.SMA20, 0)
	ind.SMA50 = finiteOr(ind.SMA50, 0)
	if ind.SMA200 != nil && !isFinite(*ind.SMA200) {
		ind.SMA200 = nil
	}
	ind.RSI = clamp(finiteOr(ind.RSI, 50), 0, 100)
	ind.MACD.Line = finiteOr(ind.MACD.Line, 0)
	ind.MACD.Signal = finiteOr(ind.MACD.Signal, 0)
	ind.MACD.Histogram = finiteOr(ind.MACD.Histogram, 0)
	ind.Bollinger.Upper = finiteOr(ind.Bollinger.Upper, 0)
	ind.Bollinger.Middle = finiteOr(ind.Bollinger.Middle, 0)
	ind.Bollinger.Lower = finiteOr(ind.Bollinger.Lower, 0)
	ind.Stochastic.K = clamp(finiteOr(ind.Stochastic.K, 50), 0, 100)
	ind.Stochastic.D = clamp(finiteOr(ind.Stochastic.D, 50), 0, 100)
	ind.ATR = finiteOr(ind.ATR, 0)

	f := &in.Features
	f.CurrentPrice = finiteOr(f.CurrentPrice, 0)
	f.Changes.Change1 = finiteOr(f.Changes.Change1, 0)
	f.Changes.Change5 = finiteOr(f.Changes.Change5, 0)
	f.Changes.Change20 = finiteOr(f.Changes.Change20, 0)
	f.VolumeRatio = finiteOr(f.VolumeRatio, 1)
	f.RealizedVol = math.Max(finiteOr(f.RealizedVol, 0), 0)

	in.Sentiment.Score = clamp(finiteOr(in.Sentiment.Score, 0), -1, 1)
	in.Sentiment.Magnitude = clamp(finiteOr(in.Sentiment.Magnitude, 0.5), 0, 1)
	in.Prediction.Confidence = clamp(finiteOr(in.Prediction.Confidence, 50), 0, 100)

	patterns := make([]models.PatternMatch, 0, len(in.Patterns))
	for _, p := range in.Patterns {
		p.Reliability = clamp(finiteOr(p.Reliability, 0), 0, 1)
		if p.Accuracy != nil {
			a := clamp(finiteOr(*p.Accuracy, 0.5), 0, 1)
			p.Accuracy = &a
		}
		patterns = append(patterns, p)
	}
	in.Patterns = patterns
	return in
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteOr(v, def float64) float64 {
	if isFinite(v) {
		return v
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
