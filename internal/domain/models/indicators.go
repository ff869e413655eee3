package models

// MACD holds the MACD line, its signal line and their difference.
type MACD struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// BollingerBands around a simple moving average.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Stochastic oscillator values, both in [0, 100].
type Stochastic struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// IndicatorSet is computed per evaluation and never persisted.
type IndicatorSet struct {
	SMA20      float64        `json:"sma20"`
	SMA50      float64        `json:"sma50"`
	SMA200     *float64       `json:"sma200,omitempty"`
	RSI        float64        `json:"rsi"`
	MACD       MACD           `json:"macd"`
	Bollinger  BollingerBands `json:"bollinger"`
	Stochastic Stochastic     `json:"stochastic"`
	ATR        float64        `json:"atr"`
}

// Polarity is the directional bias of a candlestick pattern.
type Polarity string

const (
	PolarityBullish Polarity = "bullish"
	PolarityBearish Polarity = "bearish"
	PolarityNeutral Polarity = "neutral"
)

// PatternMatch is a candlestick pattern found on the latest bars.
// Accuracy is nil when the pattern has no directional bias or never occurred
// in the lookback window.
type PatternMatch struct {
	Pattern     string   `json:"pattern"`
	Polarity    Polarity `json:"polarity"`
	Reliability float64  `json:"reliability"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
	Occurrences int      `json:"occurrences"`
}
