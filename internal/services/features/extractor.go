package features

import (
	"math"

	"SignalDesk/internal/domain/models"
)

// PriceChanges holds percentage changes of the last close over 1, 5 and 20 bars.
type PriceChanges struct {
	Change1  float64 `json:"change_1"`
	Change5  float64 `json:"change_5"`
	Change20 float64 `json:"change_20"`
}

// ComputePriceChanges returns percentage changes; a change is 0 when the
// series is too short or the reference close is not positive.
func ComputePriceChanges(bars []models.PriceBar) PriceChanges {
	return PriceChanges{
		Change1:  PercentChange(bars, 1),
		Change5:  PercentChange(bars, 5),
		Change20: PercentChange(bars, 20),
	}
}

// PercentChange is (close_t - close_{t-n}) / close_{t-n} * 100.
func PercentChange(bars []models.PriceBar, n int) float64 {
	if n <= 0 || len(bars) <= n {
		return 0
	}
	ref := bars[len(bars)-1-n].Close
	if ref <= 0 {
		return 0
	}
	return (bars[len(bars)-1].Close - ref) / ref * 100
}

// VolumeRatio compares the latest volume to the mean of the previous window volumes.
// Returns 1 when there is no usable baseline.
func VolumeRatio(bars []models.PriceBar, window int) float64 {
	if window <= 0 || len(bars) < 2 {
		return 1
	}
	prev := bars[:len(bars)-1]
	if len(prev) > window {
		prev = prev[len(prev)-window:]
	}
	sum := 0.0
	for _, b := range prev {
		sum += b.Volume
	}
	avg := sum / float64(len(prev))
	if avg <= 0 {
		return 1
	}
	return bars[len(bars)-1].Volume / avg
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(bars)-1, or nil if insufficient data.
func ComputeLogReturns(bars []models.PriceBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		cur := bars[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the latest
// window of log returns using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	m := sum / n
	variance := (sum2 - n*m*m) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYearForTF returns the approximate number of bars per year for a timeframe.
func BarsPerYearForTF(tf string) float64 {
	switch tf {
	case "1m":
		return 365 * 24 * 60
	case "1h":
		return 365 * 24
	case "1d":
		return 365
	default:
		return 365
	}
}

// Snapshot bundles the derived features the scorer reads.
type Snapshot struct {
	Changes      PriceChanges `json:"changes"`
	VolumeRatio  float64      `json:"volume_ratio"`
	RealizedVol  float64      `json:"realized_vol"`
	CurrentPrice float64      `json:"current_price"`
}

// Extract derives a Snapshot from ascending bars at the given timeframe.
func Extract(bars []models.PriceBar, tf string) Snapshot {
	s := Snapshot{
		Changes:     ComputePriceChanges(bars),
		VolumeRatio: VolumeRatio(bars, 10),
	}
	if len(bars) > 0 {
		s.CurrentPrice = bars[len(bars)-1].Close
	}
	rets := ComputeLogReturns(bars)
	s.RealizedVol = RealizedVolatility(rets, min(20, len(rets)), BarsPerYearForTF(tf))
	return s
}
