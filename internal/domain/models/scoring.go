package models

// Sentiment is an external sentiment reading for a symbol.
// Estimated is set when the provider was unavailable and a neutral default was used.
// Score is in [-1, 1], Magnitude in [0, 1].
type Sentiment struct {
	Score     float64 `json:"score"`
	Magnitude float64 `json:"magnitude"`
	Estimated bool    `json:"estimated"`
}

// NeutralSentiment is used when no provider answers.
func NeutralSentiment() Sentiment {
	return Sentiment{Score: 0, Magnitude: 0.5, Estimated: true}
}

// Trend is the direction forecast by the ML predictor.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Prediction is an external ML trend forecast.
type Prediction struct {
	Trend      Trend   `json:"trend"`
	Confidence float64 `json:"confidence"`
	Estimated  bool    `json:"estimated"`
}

// NeutralPrediction is used when no predictor answers.
func NeutralPrediction() Prediction {
	return Prediction{Trend: TrendNeutral, Confidence: 50, Estimated: true}
}

// DirectionalScore lists the weighted checks for one side. Each field holds the
// points earned, bounded by the check's weight.
type DirectionalScore struct {
	Trend       float64 `json:"trend"`
	MAAlignment float64 `json:"ma_alignment"`
	RSI         float64 `json:"rsi"`
	MACD        float64 `json:"macd"`
	Bollinger   float64 `json:"bollinger"`
	Stochastic  float64 `json:"stochastic"`
	Volume      float64 `json:"volume"`
	Sentiment   float64 `json:"sentiment"`
	ML          float64 `json:"ml"`
}

// Total sums all checks.
func (d DirectionalScore) Total() float64 {
	return d.Trend + d.MAAlignment + d.RSI + d.MACD + d.Bollinger +
		d.Stochastic + d.Volume + d.Sentiment + d.ML
}

// SuccessBuckets is the success-rate rubric for the chosen direction.
// Caps: trend 25, oscillators 25, volatility/volume 20, sentiment+ML 15, patterns 15.
type SuccessBuckets struct {
	TrendAnalysis        float64 `json:"trend_analysis"`
	OscillatorConfluence float64 `json:"oscillator_confluence"`
	VolatilityVolume     float64 `json:"volatility_volume"`
	SentimentML          float64 `json:"sentiment_ml"`
	PatternConfluence    float64 `json:"pattern_confluence"`
}

// Total sums all buckets.
func (b SuccessBuckets) Total() float64 {
	return b.TrendAnalysis + b.OscillatorConfluence + b.VolatilityVolume + b.SentimentML + b.PatternConfluence
}

// ScoreBreakdown is the full, explainable output of the composite scorer.
type ScoreBreakdown struct {
	Direction      Direction        `json:"direction"`
	SuccessRate    float64          `json:"success_rate"`
	DirectionScore float64          `json:"direction_score"`
	Buy            DirectionalScore `json:"buy"`
	Sell           DirectionalScore `json:"sell"`
	Buckets        SuccessBuckets   `json:"buckets"`
	Patterns       []PatternMatch   `json:"patterns,omitempty"`
}
