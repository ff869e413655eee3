package features

import (
	"math"
	"testing"

	"SignalDesk/internal/domain/models"
)

func closes(cs ...float64) []models.PriceBar {
	out := make([]models.PriceBar, len(cs))
	for i, c := range cs {
		out[i] = models.PriceBar{Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	return out
}

func TestPercentChange(t *testing.T) {
	bars := closes(100, 104)
	if got := PercentChange(bars, 1); math.Abs(got-4) > 1e-9 {
		t.Fatalf("expected 4%%, got %v", got)
	}
	if got := PercentChange(bars, 5); got != 0 {
		t.Fatalf("expected 0 for short series, got %v", got)
	}
	if got := PercentChange(closes(0, 5), 1); got != 0 {
		t.Fatalf("expected 0 for non-positive reference, got %v", got)
	}
}

func TestVolumeRatio(t *testing.T) {
	bars := closes(1, 1, 1, 1)
	bars[3].Volume = 300
	if got := VolumeRatio(bars, 10); math.Abs(got-3) > 1e-9 {
		t.Fatalf("expected 3x volume, got %v", got)
	}
	if got := VolumeRatio(bars[:1], 10); got != 1 {
		t.Fatalf("expected neutral ratio without baseline, got %v", got)
	}
}

func TestComputeLogReturns(t *testing.T) {
	rets := ComputeLogReturns(closes(100, 110, 0, 121))
	if len(rets) != 3 {
		t.Fatalf("expected 3 returns, got %d", len(rets))
	}
	if math.Abs(rets[0]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("unexpected first return %v", rets[0])
	}
	if rets[1] != 0 || rets[2] != 0 {
		t.Fatalf("non-positive closes must yield 0 returns, got %v", rets)
	}
}

func TestRealizedVolatility_Constant(t *testing.T) {
	rets := []float64{0.01, 0.01, 0.01, 0.01}
	if got := RealizedVolatility(rets, 4, 365); got > 1e-9 {
		t.Fatalf("expected ~0 vol for constant returns, got %v", got)
	}
	if got := RealizedVolatility(rets, 10, 365); got != 0 {
		t.Fatalf("expected 0 when window exceeds data, got %v", got)
	}
}

func TestExtract(t *testing.T) {
	s := Extract(closes(100, 101, 102, 103, 104, 105), "1d")
	if s.CurrentPrice != 105 {
		t.Fatalf("unexpected current price %v", s.CurrentPrice)
	}
	if s.Changes.Change5 <= 0 {
		t.Fatalf("expected positive 5-bar change, got %v", s.Changes.Change5)
	}
}
