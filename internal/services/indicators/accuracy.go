package indicators

import "SignalDesk/internal/domain/models"

const (
	AccuracyLookback = 100
	AccuracyHorizon  = 5
)

// PatternAccuracy backtests p over the last lookback bars. A detection at bar i
// succeeds when the close horizon bars later beats the open of bar i+1 in the
// pattern's direction. Neutral patterns and patterns with no detections return nil.
func PatternAccuracy(bars []models.PriceBar, p Pattern, lookback, horizon int) (*float64, int) {
	if p.Polarity == models.PolarityNeutral || horizon < 1 {
		return nil, 0
	}
	start := p.Bars - 1
	if lookback > 0 && len(bars)-lookback > start {
		start = len(bars) - lookback
	}

	hits, total := 0, 0
	for i := start; i+horizon < len(bars); i++ {
		if !p.Detect(bars, i) {
			continue
		}
		total++
		entry := bars[i+1].Open
		exit := bars[i+horizon].Close
		if (p.Polarity == models.PolarityBullish && exit > entry) ||
			(p.Polarity == models.PolarityBearish && exit < entry) {
			hits++
		}
	}
	if total == 0 {
		return nil, 0
	}
	acc := float64(hits) / float64(total)
	return &acc, total
}

// DetectPatterns returns every catalogue pattern present on the last bar,
// each with its backtested accuracy over the series.
func DetectPatterns(bars []models.PriceBar, lookback, horizon int) []models.PatternMatch {
	if len(bars) == 0 {
		return nil
	}
	last := len(bars) - 1
	var out []models.PatternMatch
	for _, p := range Patterns {
		if last < p.Bars-1 || !p.Detect(bars, last) {
			continue
		}
		acc, n := PatternAccuracy(bars, p, lookback, horizon)
		out = append(out, models.PatternMatch{
			Pattern:     p.Name,
			Polarity:    p.Polarity,
			Reliability: p.Reliability,
			Accuracy:    acc,
			Occurrences: n,
		})
	}
	return out
}
