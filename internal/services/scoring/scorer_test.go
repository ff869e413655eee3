package scoring

import (
	"math"
	"reflect"
	"testing"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/services/features"
)

func f64(v float64) *float64 { return &v }

func bullishInput() Input {
	return Input{
		Indicators: models.IndicatorSet{
			SMA20:      105,
			SMA50:      100,
			SMA200:     f64(90),
			RSI:        28,
			MACD:       models.MACD{Line: 2, Signal: 1, Histogram: 1},
			Bollinger:  models.BollingerBands{Upper: 120, Middle: 110, Lower: 108},
			Stochastic: models.Stochastic{K: 15, D: 10},
			ATR:        2,
		},
		Features: features.Snapshot{
			Changes:      features.PriceChanges{Change1: 1, Change5: 3, Change20: 8},
			VolumeRatio:  2,
			RealizedVol:  0.3,
			CurrentPrice: 107,
		},
		Sentiment:  models.Sentiment{Score: 0.8, Magnitude: 0.9},
		Prediction: models.Prediction{Trend: models.TrendUp, Confidence: 80},
		Patterns: []models.PatternMatch{
			{Pattern: "hammer", Polarity: models.PolarityBullish, Reliability: 0.6, Accuracy: f64(0.7)},
		},
	}
}

func mirror(in Input) Input {
	out := in
	ind := &out.Indicators
	ind.SMA20, ind.SMA50 = 95, 100
	ind.SMA200 = f64(110)
	ind.RSI = 100 - in.Indicators.RSI
	ind.MACD = models.MACD{Line: -2, Signal: -1, Histogram: -1}
	ind.Bollinger = models.BollingerBands{Upper: 92, Middle: 90, Lower: 80}
	ind.Stochastic = models.Stochastic{K: 85, D: 90}
	out.Features.Changes = features.PriceChanges{Change1: -1, Change5: -3, Change20: -8}
	out.Features.CurrentPrice = 93
	out.Sentiment.Score = -in.Sentiment.Score
	out.Prediction.Trend = models.TrendDown
	out.Patterns = []models.PatternMatch{
		{Pattern: "shooting_star", Polarity: models.PolarityBearish, Reliability: 0.6, Accuracy: f64(0.7)},
	}
	return out
}

func TestScore_BullishSetupPicksBuy(t *testing.T) {
	got := New().Score(bullishInput())
	if got.Direction != models.DirectionBuy {
		t.Fatalf("expected BUY, got %s", got.Direction)
	}
	if got.Buy.Total() <= got.Sell.Total() {
		t.Fatalf("buy %v should beat sell %v", got.Buy.Total(), got.Sell.Total())
	}
	if got.Buy.RSI != WeightRSI {
		t.Fatalf("oversold RSI should earn full weight, got %v", got.Buy.RSI)
	}
	if got.Buy.Volume != WeightVolume {
		t.Fatalf("volume surge on an up bar should earn full weight, got %v", got.Buy.Volume)
	}
	if got.DirectionScore < 70 {
		t.Fatalf("expected a strong direction score, got %v", got.DirectionScore)
	}
}

func TestScore_MirroredSetupPicksSell(t *testing.T) {
	buy := New().Score(bullishInput())
	sell := New().Score(mirror(bullishInput()))
	if sell.Direction != models.DirectionSell {
		t.Fatalf("expected SELL, got %s", sell.Direction)
	}
	if math.Abs(buy.DirectionScore-sell.DirectionScore) > 1e-9 {
		t.Fatalf("mirrored inputs should score the same: buy %v sell %v", buy.DirectionScore, sell.DirectionScore)
	}
	if math.Abs(buy.SuccessRate-sell.SuccessRate) > 1e-9 {
		t.Fatalf("mirrored success rates differ: buy %v sell %v", buy.SuccessRate, sell.SuccessRate)
	}
}

func TestScore_TieFavorsBuy(t *testing.T) {
	in := Input{
		Indicators: models.IndicatorSet{
			SMA20: 100, SMA50: 100, RSI: 50,
			Bollinger:  models.BollingerBands{Upper: 110, Middle: 100, Lower: 90},
			Stochastic: models.Stochastic{K: 50, D: 50},
			ATR:        2,
		},
		Features:   features.Snapshot{CurrentPrice: 100, VolumeRatio: 1},
		Sentiment:  models.NeutralSentiment(),
		Prediction: models.NeutralPrediction(),
	}
	got := New().Score(in)
	if got.Buy.Total() != got.Sell.Total() {
		t.Fatalf("fixture should be symmetric: buy %v sell %v", got.Buy.Total(), got.Sell.Total())
	}
	if got.Direction != models.DirectionBuy {
		t.Fatalf("ties must favor BUY, got %s", got.Direction)
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := New()
	first := s.Score(bullishInput())
	for i := 0; i < 20; i++ {
		if next := s.Score(bullishInput()); !reflect.DeepEqual(first, next) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, next)
		}
	}
}

func TestScore_ClampedForExtremeInputs(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	cases := []struct {
		name string
		in   Input
	}{
		{name: "zero", in: Input{}},
		{name: "non-finite", in: Input{
			Indicators: models.IndicatorSet{
				SMA20: nan, SMA50: inf, SMA200: f64(math.Inf(-1)), RSI: nan,
				MACD:       models.MACD{Line: inf, Signal: nan, Histogram: inf},
				Bollinger:  models.BollingerBands{Upper: nan, Middle: inf, Lower: nan},
				Stochastic: models.Stochastic{K: inf, D: nan},
				ATR:        inf,
			},
			Features: features.Snapshot{
				Changes:      features.PriceChanges{Change1: nan, Change5: inf, Change20: nan},
				VolumeRatio:  inf,
				CurrentPrice: nan,
			},
			Sentiment:  models.Sentiment{Score: inf, Magnitude: nan},
			Prediction: models.Prediction{Trend: models.TrendUp, Confidence: inf},
			Patterns:   []models.PatternMatch{{Polarity: models.PolarityBullish, Reliability: inf, Accuracy: f64(nan)}},
		}},
		{name: "huge", in: Input{
			Indicators: models.IndicatorSet{SMA20: 1e300, SMA50: -1e300, RSI: 1e9, ATR: 1e300,
				Stochastic: models.Stochastic{K: -1e9, D: 1e9}},
			Features: features.Snapshot{
				Changes:      features.PriceChanges{Change1: 1e300, Change5: 1e300, Change20: 1e300},
				VolumeRatio:  1e300,
				CurrentPrice: 1e300,
			},
			Sentiment:  models.Sentiment{Score: 1e9},
			Prediction: models.Prediction{Trend: models.TrendUp, Confidence: 1e9},
			Patterns: []models.PatternMatch{
				{Polarity: models.PolarityBullish, Reliability: 10, Accuracy: f64(10)},
				{Polarity: models.PolarityBullish, Reliability: 10, Accuracy: f64(10)},
			},
		}},
		{name: "strong bullish", in: bullishInput()},
		{name: "strong bearish", in: mirror(bullishInput())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := New().Score(tc.in)
			for label, v := range map[string]float64{"success_rate": got.SuccessRate, "direction_score": got.DirectionScore} {
				if math.IsNaN(v) || v < 0 || v > 100 {
					t.Fatalf("%s out of range: %v", label, v)
				}
			}
			if got.Buckets.PatternConfluence > BucketPattern || got.Buckets.TrendAnalysis > BucketTrend {
				t.Fatalf("bucket exceeds cap: %+v", got.Buckets)
			}
		})
	}
}

func TestPatternConfluence(t *testing.T) {
	if got := patternConfluence(nil, 1); got != 0.5 {
		t.Fatalf("no patterns should be neutral, got %v", got)
	}
	bull := []models.PatternMatch{{Polarity: models.PolarityBullish, Reliability: 0.8, Accuracy: f64(1)}}
	if got := patternConfluence(bull, 1); math.Abs(got-0.9) > 1e-9 {
		t.Fatalf("aligned pattern: expected 0.9, got %v", got)
	}
	if got := patternConfluence(bull, -1); math.Abs(got-0.1) > 1e-9 {
		t.Fatalf("opposed pattern: expected 0.1, got %v", got)
	}
	doji := []models.PatternMatch{{Polarity: models.PolarityNeutral, Reliability: 0.5}}
	if got := patternConfluence(doji, 1); got != 0.5 {
		t.Fatalf("neutral pattern should not move confluence, got %v", got)
	}
}

func TestATRQuality(t *testing.T) {
	cases := []struct {
		atr, price, want float64
	}{
		{0, 100, 0},
		{0.5, 100, 0.5},
		{3, 100, 1},
		{10, 100, 0.5},
		{30, 100, 0},
	}
	for _, tc := range cases {
		if got := atrQuality(tc.atr, tc.price); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("atrQuality(%v, %v) = %v, want %v", tc.atr, tc.price, got, tc.want)
		}
	}
}

func TestScore_RealizedVolatilityMovesSuccessRate(t *testing.T) {
	base := New().Score(bullishInput())

	wild := bullishInput()
	wild.Features.RealizedVol = 1.5
	got := New().Score(wild)
	if got.Buckets.VolatilityVolume >= base.Buckets.VolatilityVolume {
		t.Fatalf("extreme volatility should lower the bucket: %v vs %v", got.Buckets.VolatilityVolume, base.Buckets.VolatilityVolume)
	}
	if got.SuccessRate >= base.SuccessRate {
		t.Fatalf("extreme volatility should lower success rate: %v vs %v", got.SuccessRate, base.SuccessRate)
	}
	if got.DirectionScore != base.DirectionScore {
		t.Fatalf("volatility must not change the direction score")
	}
}

func TestScore_SentimentMagnitudeScalesContribution(t *testing.T) {
	weak, strong := bullishInput(), bullishInput()
	weak.Sentiment.Magnitude = 0
	strong.Sentiment.Magnitude = 1

	w := New().Score(weak)
	s := New().Score(strong)
	if w.Buy.Sentiment != 0 {
		t.Fatalf("zero magnitude should earn no sentiment points, got %v", w.Buy.Sentiment)
	}
	if math.Abs(s.Buy.Sentiment-WeightSentiment*0.8) > 1e-9 {
		t.Fatalf("full magnitude: got %v, want %v", s.Buy.Sentiment, WeightSentiment*0.8)
	}
	if s.DirectionScore <= w.DirectionScore || s.SuccessRate <= w.SuccessRate {
		t.Fatalf("stronger sentiment should raise scores: weak %v/%v strong %v/%v",
			w.DirectionScore, w.SuccessRate, s.DirectionScore, s.SuccessRate)
	}
}

func TestRealizedVolQuality(t *testing.T) {
	cases := []struct{ rv, want float64 }{
		{0, 0.5},
		{0.075, 0.5},
		{0.3, 1},
		{0.9, 0.5},
		{2, 0},
	}
	for _, tc := range cases {
		if got := realizedVolQuality(tc.rv); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("realizedVolQuality(%v) = %v, want %v", tc.rv, got, tc.want)
		}
	}
}

func TestRSIPointsMirror(t *testing.T) {
	for _, rsi := range []float64{10, 35, 55, 80} {
		if rsiPoints(rsi, 1) != rsiPoints(100-rsi, -1) {
			t.Fatalf("rsi %v: buy and mirrored sell points differ", rsi)
		}
	}
}
