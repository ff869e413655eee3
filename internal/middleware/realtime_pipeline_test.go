package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/metrics"
)

type recordingProc struct {
	mu    sync.Mutex
	ticks []models.Tick
	fail  int
}

func (r *recordingProc) Process(_ context.Context, t models.Tick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("downstream down")
	}
	r.ticks = append(r.ticks, t)
	return nil
}

func (r *recordingProc) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func tick(symbol string, price float64) models.Tick {
	return models.Tick{Symbol: symbol, Price: price, Volume: 1, Timestamp: time.Unix(1700000000, 0)}
}

func TestPipeline_Validation(t *testing.T) {
	p := NewRealtimePipeline(&recordingProc{}, metrics.Nop{}, WithMaxRPS(0))
	bad := []models.Tick{
		{Price: 1, Timestamp: time.Unix(1, 0)},
		{Symbol: "X", Price: 1},
		{Symbol: "X", Price: 0, Timestamp: time.Unix(1, 0)},
		{Symbol: "X", Price: 1, Volume: -1, Timestamp: time.Unix(1, 0)},
	}
	for i, tk := range bad {
		if err := p.Process(context.Background(), tk); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestPipeline_ThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithThrottleWindow(250*time.Millisecond))
	now := time.Unix(1700000000, 0)
	p.now = func() time.Time { return now }

	ctx := context.Background()
	_ = p.Process(ctx, tick("BTC", 1))
	_ = p.Process(ctx, tick("BTC", 2))
	_ = p.Process(ctx, tick("ETH", 3))
	now = now.Add(300 * time.Millisecond)
	_ = p.Process(ctx, tick("BTC", 4))

	if proc.count() != 3 {
		t.Fatalf("forwarded %d ticks, want 3", proc.count())
	}
}

func TestPipeline_BuffersAndRetries(t *testing.T) {
	proc := &recordingProc{fail: 2}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMaxRPS(0), WithBufferSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Process(ctx, tick("BTC", 1)); err == nil {
		t.Fatalf("expected downstream error")
	}
	if p.Buffered() != 1 {
		t.Fatalf("buffered = %d", p.Buffered())
	}
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for proc.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if proc.count() != 1 {
		t.Fatalf("buffered tick never delivered")
	}
}

func TestPipeline_Transform(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithTransform(UppercaseSymbols))
	_ = p.Process(context.Background(), tick(" btcusdt ", 1))
	if proc.count() != 1 || proc.ticks[0].Symbol != "BTCUSDT" {
		t.Fatalf("ticks = %+v", proc.ticks)
	}
}
