package indicators

import (
	"math"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func wavy(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	return out
}

func barsFromCloses(closes []float64) []models.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		out[i] = models.PriceBar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      open,
			High:      math.Max(open, c) + 1,
			Low:       math.Min(open, c) - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	assertClose(t, "empty", SMA(nil, 5), 0, 1e-9)
	assertClose(t, "short falls back to mean", SMA([]float64{1, 2, 3}, 10), 2, 1e-9)
	assertClose(t, "last window", SMA([]float64{1, 2, 3, 4, 5}, 2), 4.5, 1e-9)
}

func TestEMA_SeededBySMA(t *testing.T) {
	// seed = mean(1,2,3) = 2, k = 0.5: 4->3, 5->4, ... 10->9
	assertClose(t, "ema(3)", EMA(rising(10, 1, 1), 3), 9, 1e-9)

	s := EMASeries(rising(10, 1, 1), 3)
	if len(s) != 8 {
		t.Fatalf("expected 8 series points, got %d", len(s))
	}
	assertClose(t, "seed", s[0], 2, 1e-9)
}

func TestEMA_ShortInputFallsBackToSMA(t *testing.T) {
	assertClose(t, "ema short", EMA([]float64{2, 4}, 5), 3, 1e-9)
	if EMASeries([]float64{2, 4}, 5) != nil {
		t.Fatalf("expected nil series for short input")
	}
}

func TestRSI_MonotonicIncreaseIs100(t *testing.T) {
	got := RSI(rising(20, 100, 1), RSIPeriod)
	if got != 100 {
		t.Fatalf("expected RSI 100 on a strictly increasing series, got %v", got)
	}
}

func TestRSI_ShortInputIsNeutral(t *testing.T) {
	if got := RSI(rising(14, 1, 1), RSIPeriod); got != 50 {
		t.Fatalf("expected 50 for fewer than period+1 values, got %v", got)
	}
}

func TestRSI_BalancedMovesIs50(t *testing.T) {
	assertClose(t, "rsi", RSI([]float64{1, 2, 1}, 2), 50, 1e-9)
}

func TestRSI_Range(t *testing.T) {
	series := [][]float64{
		wavy(60),
		rising(40, 200, -2),
		{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
		{1, 1e9, 1, 1e9, 1, 1e9, 1, 1e9, 1, 1e9, 1, 1e9, 1, 1e9, 1, 1e9},
	}
	for i, s := range series {
		got := RSI(s, RSIPeriod)
		if got < 0 || got > 100 || math.IsNaN(got) {
			t.Fatalf("series %d: RSI out of range: %v", i, got)
		}
	}
}

func TestMACD_HistogramIdentity(t *testing.T) {
	for _, n := range []int{0, 5, 26, 30, 34, 120} {
		m := MACD(wavy(n))
		if m.Histogram != m.Line-m.Signal {
			t.Fatalf("n=%d: histogram %v != line-signal %v", n, m.Histogram, m.Line-m.Signal)
		}
	}
}

func TestMACD_ShortInputHasNoHistogram(t *testing.T) {
	m := MACD(rising(20, 1, 1))
	if m.Histogram != 0 || m.Line != m.Signal {
		t.Fatalf("expected flat MACD on short input, got %+v", m)
	}
}

func TestMACD_UptrendIsPositive(t *testing.T) {
	m := MACD(rising(80, 100, 1))
	if m.Line <= 0 {
		t.Fatalf("expected positive MACD line in uptrend, got %v", m.Line)
	}
}

func TestBollinger_Ordering(t *testing.T) {
	for _, s := range [][]float64{wavy(50), rising(5, 1, 1), nil} {
		b := Bollinger(s, BollingerPeriod, BollingerK)
		if !(b.Upper >= b.Middle && b.Middle >= b.Lower) {
			t.Fatalf("bands out of order: %+v", b)
		}
	}
	b := Bollinger(wavy(50), BollingerPeriod, -2)
	if b.Upper < b.Lower {
		t.Fatalf("negative k must not invert bands: %+v", b)
	}
}

func TestBollinger_ConstantSeriesCollapses(t *testing.T) {
	b := Bollinger([]float64{7, 7, 7, 7}, BollingerPeriod, BollingerK)
	if b.Upper != 7 || b.Lower != 7 {
		t.Fatalf("expected collapsed bands, got %+v", b)
	}
}

func TestStdDev(t *testing.T) {
	// population stddev of 2,4,4,4,5,5,7,9 is 2
	assertClose(t, "stddev", StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8), 2, 1e-9)
}

func TestRSI_WilderSmoothing(t *testing.T) {
	// diffs +1 -1 +1 +1; seed gain/loss 0.5/0.5, then 0.75/0.25, 0.875/0.125
	assertClose(t, "rsi", RSI([]float64{1, 2, 1, 2, 3}, 2), 87.5, 1e-9)
	if got := RSI([]float64{1, 2, 1, 2, 3}, 1); got != 50 {
		t.Fatalf("period below 2 should be neutral, got %v", got)
	}
}

func TestBollinger_KnownBands(t *testing.T) {
	b := Bollinger([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, BollingerK)
	assertClose(t, "middle", b.Middle, 5, 1e-9)
	assertClose(t, "upper", b.Upper, 9, 1e-9)
	assertClose(t, "lower", b.Lower, 1, 1e-9)
}

func TestATR_UsesTrailingWindow(t *testing.T) {
	bars := []models.PriceBar{
		{High: 11, Low: 9, Close: 10},
		{High: 20, Low: 10, Close: 15}, // tr 10
		{High: 16, Low: 14, Close: 15}, // tr 2
		{High: 18, Low: 14, Close: 16}, // tr 4
	}
	assertClose(t, "last two", ATR(bars, 2), 3, 1e-9)
	assertClose(t, "all", ATR(bars, 0), 16.0/3, 1e-9)
}

func stochBars(lastCloses ...float64) []models.PriceBar {
	bars := make([]models.PriceBar, 16)
	for i := range bars {
		bars[i] = models.PriceBar{Open: 15, High: 20, Low: 10, Close: 15}
	}
	for i, c := range lastCloses {
		bars[len(bars)-len(lastCloses)+i].Close = c
	}
	return bars
}

func TestStochastic_FlatRangeIs50(t *testing.T) {
	bars := make([]models.PriceBar, 20)
	for i := range bars {
		bars[i] = models.PriceBar{Open: 5, High: 5, Low: 5, Close: 5}
	}
	s := Stochastic(bars, StochasticPeriod, StochasticD)
	if s.K != 50 || s.D != 50 {
		t.Fatalf("expected 50/50, got %+v", s)
	}
}

func TestStochastic_ShortInputIsNeutral(t *testing.T) {
	s := Stochastic(stochBars()[:5], StochasticPeriod, StochasticD)
	if s.K != 50 || s.D != 50 {
		t.Fatalf("expected 50/50, got %+v", s)
	}
}

// %D is the textbook 3-period SMA of %K. Passing dPeriod=1 reproduces the
// shortcut where %D mirrors %K. Both behaviors are pinned here.
func TestStochastic_PercentDSmoothing(t *testing.T) {
	bars := stochBars(12, 15, 20) // %K: 20, 50, 100

	smoothed := Stochastic(bars, StochasticPeriod, 3)
	assertClose(t, "K", smoothed.K, 100, 1e-9)
	assertClose(t, "D smoothed", smoothed.D, (20.0+50.0+100.0)/3, 1e-9)

	shortcut := Stochastic(bars, StochasticPeriod, 1)
	assertClose(t, "D shortcut", shortcut.D, shortcut.K, 1e-9)

	// not enough complete %K windows for smoothing: %D falls back to %K
	tooFew := Stochastic(bars[2:], StochasticPeriod, 3)
	assertClose(t, "D fallback", tooFew.D, tooFew.K, 1e-9)
}

func TestATR(t *testing.T) {
	if ATR(nil, ATRPeriod) != 0 {
		t.Fatalf("expected 0 for empty input")
	}
	one := []models.PriceBar{{High: 12, Low: 9, Close: 10}}
	assertClose(t, "single bar", ATR(one, ATRPeriod), 3, 1e-9)

	gap := []models.PriceBar{
		{High: 11, Low: 9, Close: 10},
		{High: 15, Low: 12, Close: 14},
	}
	// true range = max(3, |15-10|, |12-10|) = 5
	assertClose(t, "gap", ATR(gap, ATRPeriod), 5, 1e-9)

	steady := make([]models.PriceBar, 30)
	for i := range steady {
		steady[i] = models.PriceBar{High: 101, Low: 99, Close: 100}
	}
	assertClose(t, "steady", ATR(steady, ATRPeriod), 2, 1e-9)
}

func hasPattern(bars []models.PriceBar, name string) bool {
	for _, p := range Patterns {
		if p.Name == name {
			return p.Detect(bars, len(bars)-1)
		}
	}
	return false
}

func TestCandlestickDetectors(t *testing.T) {
	tests := []struct {
		name    string
		bars    []models.PriceBar
		pattern string
		want    bool
	}{
		{"hammer", []models.PriceBar{{Open: 10, Close: 10.5, High: 10.6, Low: 8}}, "hammer", true},
		{"hammer is not a shooting star", []models.PriceBar{{Open: 10, Close: 10.5, High: 10.6, Low: 8}}, "shooting_star", false},
		{"shooting star", []models.PriceBar{{Open: 10.5, Close: 10, High: 12.5, Low: 9.9}}, "shooting_star", true},
		{"doji", []models.PriceBar{{Open: 10, Close: 10.05, High: 11, Low: 9}}, "doji", true},
		{"flat bar is not a doji", []models.PriceBar{{Open: 10, Close: 10, High: 10, Low: 10}}, "doji", false},
		{"bullish engulfing", []models.PriceBar{
			{Open: 11, Close: 10, High: 11.2, Low: 9.8},
			{Open: 9.8, Close: 11.5, High: 11.6, Low: 9.7},
		}, "bullish_engulfing", true},
		{"bearish engulfing", []models.PriceBar{
			{Open: 10, Close: 11, High: 11.2, Low: 9.8},
			{Open: 11.2, Close: 9.5, High: 11.3, Low: 9.4},
		}, "bearish_engulfing", true},
		{"bullish harami", []models.PriceBar{
			{Open: 12, Close: 10, High: 12.1, Low: 9.9},
			{Open: 10.4, Close: 11, High: 11.1, Low: 10.3},
		}, "bullish_harami", true},
		{"bearish harami", []models.PriceBar{
			{Open: 10, Close: 12, High: 12.1, Low: 9.9},
			{Open: 11.6, Close: 11, High: 11.7, Low: 10.9},
		}, "bearish_harami", true},
		{"morning star", []models.PriceBar{
			{Open: 12, Close: 10, High: 12.1, Low: 9.9},
			{Open: 9.7, Close: 9.6, High: 9.8, Low: 9.5},
			{Open: 9.8, Close: 11.5, High: 11.6, Low: 9.7},
		}, "morning_star", true},
		{"evening star", []models.PriceBar{
			{Open: 10, Close: 12, High: 12.1, Low: 9.9},
			{Open: 12.3, Close: 12.4, High: 12.5, Low: 12.2},
			{Open: 12.2, Close: 10.5, High: 12.3, Low: 10.4},
		}, "evening_star", true},
		{"morning star needs three bars", []models.PriceBar{
			{Open: 9.7, Close: 9.6, High: 9.8, Low: 9.5},
			{Open: 9.8, Close: 11.5, High: 11.6, Low: 9.7},
		}, "morning_star", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasPattern(tt.bars, tt.pattern); got != tt.want {
				t.Fatalf("%s: got %v, want %v", tt.pattern, got, tt.want)
			}
		})
	}
}

func hammerThenRally() []models.PriceBar {
	bars := []models.PriceBar{
		{Open: 10, Close: 10, High: 10, Low: 10},
		{Open: 10, Close: 10, High: 10, Low: 10},
		{Open: 10, Close: 10.5, High: 10.6, Low: 8},
	}
	for k := 0; k < 6; k++ {
		o := 10.6 + 0.3*float64(k)
		bars = append(bars, models.PriceBar{Open: o, Close: o + 0.3, High: o + 0.3, Low: o})
	}
	return bars
}

func TestPatternAccuracy_Bullish(t *testing.T) {
	var hammer Pattern
	for _, p := range Patterns {
		if p.Name == "hammer" {
			hammer = p
		}
	}
	acc, n := PatternAccuracy(hammerThenRally(), hammer, AccuracyLookback, AccuracyHorizon)
	if acc == nil || n != 1 {
		t.Fatalf("expected one scored occurrence, got acc=%v n=%d", acc, n)
	}
	assertClose(t, "accuracy", *acc, 1, 1e-9)
}

func TestPatternAccuracy_NeutralHasNone(t *testing.T) {
	var doji Pattern
	for _, p := range Patterns {
		if p.Name == "doji" {
			doji = p
		}
	}
	acc, n := PatternAccuracy(hammerThenRally(), doji, AccuracyLookback, AccuracyHorizon)
	if acc != nil || n != 0 {
		t.Fatalf("neutral pattern must not carry accuracy")
	}
}

func TestDetectPatterns_LastBar(t *testing.T) {
	bars := hammerThenRally()[:3]
	got := DetectPatterns(bars, AccuracyLookback, AccuracyHorizon)
	if len(got) != 1 || got[0].Pattern != "hammer" || got[0].Polarity != models.PolarityBullish {
		t.Fatalf("expected a single hammer, got %+v", got)
	}
	if got[0].Accuracy != nil {
		t.Fatalf("no forward bars yet, accuracy must be nil")
	}
}

func TestCompute_SMA200Optional(t *testing.T) {
	set := Compute(barsFromCloses(wavy(199)))
	if set.SMA200 != nil {
		t.Fatalf("SMA200 must be absent below 200 bars")
	}
	set = Compute(barsFromCloses(wavy(200)))
	if set.SMA200 == nil {
		t.Fatalf("SMA200 must be present with 200 bars")
	}
	if set.ATR <= 0 {
		t.Fatalf("expected positive ATR, got %v", set.ATR)
	}
}
