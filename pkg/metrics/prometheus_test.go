package metrics

import (
	"testing"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	_ repository.Metrics = (*Recorder)(nil)
	_ repository.Metrics = Nop{}
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordSignalCreated("AAPL", models.DirectionBuy)
	r.RecordSignalCreated("AAPL", models.DirectionBuy)
	r.RecordTransition(models.StatusCompleted)
	r.RecordPoolSize(7, 10)
	r.RecordLastPrice("AAPL", 187.5)
	r.RecordError("price_unavailable")

	if got := testutil.ToFloat64(r.signalsCreated.WithLabelValues("AAPL", "BUY")); got != 2 {
		t.Fatalf("signals created = %v", got)
	}
	if got := testutil.ToFloat64(r.transitions.WithLabelValues("COMPLETED")); got != 1 {
		t.Fatalf("transitions = %v", got)
	}
	if got := testutil.ToFloat64(r.poolActive); got != 7 {
		t.Fatalf("pool active = %v", got)
	}
	if got := testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")); got != 187.5 {
		t.Fatalf("last price = %v", got)
	}
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	// two recorders on fresh registries must not collide
	NewWithRegistry(prometheus.NewRegistry())
	NewWithRegistry(prometheus.NewRegistry())
}
