package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"SignalDesk/pkg/logger"
	"SignalDesk/pkg/metrics"

	"github.com/rs/zerolog"
)

func newSource(gen Generator, universe []string, minPool int) *CandidateSource {
	return NewCandidateSource(gen, CandidateConfig{
		Universe:    universe,
		MinPool:     minPool,
		MaxBatches:  3,
		Concurrency: 4,
		Seed:        42,
	}, metrics.Nop{}, logger.NewNop())
}

func TestCandidateSource_PoolTarget(t *testing.T) {
	c := newSource(newFixedGenerator(), nil, 50)
	if got := c.PoolTarget(3); got != 50 {
		t.Fatalf("PoolTarget(3) = %d, want 50", got)
	}
	if got := c.PoolTarget(20); got != 60 {
		t.Fatalf("PoolTarget(20) = %d, want 60", got)
	}
}

func TestCandidateSource_ExcludesAndDedupes(t *testing.T) {
	gen := newFixedGenerator()
	for _, s := range []string{"AAPL", "MSFT", "NVDA", "TSLA"} {
		gen.signals[s] = candidate(s, 70, 70, 3)
	}
	universe := []string{"AAPL", "MSFT", "AAPL", "NVDA", "TSLA"}
	c := newSource(gen, universe, 10)

	got := c.Candidates(context.Background(), 1, map[string]struct{}{"TSLA": {}})
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %v", symbols(got))
	}
	seen := map[string]bool{}
	for _, s := range got {
		if s.Symbol == "TSLA" {
			t.Fatalf("excluded symbol returned")
		}
		if seen[s.Symbol] {
			t.Fatalf("duplicate symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true
	}
	if gen.callCount("TSLA") != 0 {
		t.Fatalf("excluded symbol was evaluated")
	}
	if gen.callCount("AAPL") != 1 {
		t.Fatalf("produced symbol evaluated %d times", gen.callCount("AAPL"))
	}
}

func TestCandidateSource_FailuresDoNotAbort(t *testing.T) {
	gen := newFixedGenerator()
	gen.signals["AAPL"] = candidate("AAPL", 70, 70, 3)
	gen.errs["BAD"] = errors.New("boom")
	c := newSource(gen, []string{"BAD", "AAPL", "NOHIST"}, 10)

	got := c.Candidates(context.Background(), 1, nil)
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Fatalf("got %v", symbols(got))
	}
	// failed symbols stay eligible in every batch
	if n := gen.callCount("BAD"); n != 3 {
		t.Fatalf("BAD tried %d times, want one per batch", n)
	}
}

func TestCandidateSource_StopsAtTarget(t *testing.T) {
	gen := newFixedGenerator()
	var universe []string
	for _, s := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		gen.signals[s] = candidate(s, 70, 70, 3)
		universe = append(universe, s)
	}
	c := newSource(gen, universe, 3)

	got := c.Candidates(context.Background(), 1, nil)
	if len(got) != 3 {
		t.Fatalf("expected pool target 3, got %d", len(got))
	}
}

func TestCandidateSource_CancelledContext(t *testing.T) {
	gen := newFixedGenerator()
	gen.signals["AAPL"] = candidate("AAPL", 70, 70, 3)
	c := newSource(gen, []string{"AAPL"}, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := c.Candidates(ctx, 1, nil); len(got) != 0 {
		t.Fatalf("cancelled context produced %v", symbols(got))
	}
}

func TestCandidateSource_LogsUniverseCapOnce(t *testing.T) {
	gen := newFixedGenerator()
	for _, s := range []string{"AAPL", "MSFT", "NVDA"} {
		gen.signals[s] = candidate(s, 70, 70, 3)
	}
	var buf bytes.Buffer
	c := NewCandidateSource(gen, CandidateConfig{
		Universe: []string{"AAPL", "MSFT", "NVDA", "AAPL"},
		MinPool:  50,
		Seed:     7,
	}, metrics.Nop{}, logger.NewWithWriter(&buf, zerolog.InfoLevel))

	for i := 0; i < 2; i++ {
		if got := c.Candidates(context.Background(), 1, map[string]struct{}{"NVDA": {}}); len(got) != 2 {
			t.Fatalf("call %d: expected 2 candidates, got %v", i, symbols(got))
		}
	}
	out := buf.String()
	if n := strings.Count(out, "candidates.target capped_by_universe"); n != 1 {
		t.Fatalf("expected one cap log line, got %d: %s", n, out)
	}
	if !strings.Contains(out, `"usable_symbols":2`) {
		t.Fatalf("cap log should report usable symbols: %s", out)
	}
}
