package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func newSignal(symbol string, created time.Time) *models.Signal {
	return &models.Signal{
		Symbol:          symbol,
		Direction:       models.DirectionBuy,
		EntryPrice:      decimal.NewFromInt(100),
		TargetPrice:     decimal.NewFromInt(110),
		StopLossPrice:   decimal.NewFromFloat(96.5),
		Status:          models.StatusActive,
		SuccessRate:     71.25,
		DirectionScore:  64,
		TimeframeClass:  models.TimeframeShort,
		RiskRewardRatio: decimal.NewFromInt(3),
		CreatedAt:       created,
	}
}

func stores(t *testing.T) map[string]domrepo.SignalStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]domrepo.SignalStore{
		"memory": NewMemorySignalStore(),
		"redis":  NewRedisSignalStore(client, "test"),
	}
}

func TestSignalStore_InsertGetQuery(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := newSignal("AAPL", base)
			b := newSignal("MSFT", base.Add(time.Minute))
			for _, s := range []*models.Signal{a, b} {
				if err := store.Insert(ctx, s); err != nil {
					t.Fatalf("insert: %v", err)
				}
			}
			if a.ID == "" || a.ID == b.ID {
				t.Fatalf("ids not assigned uniquely: %q %q", a.ID, b.ID)
			}

			got, err := store.Get(ctx, a.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Symbol != "AAPL" || !got.TargetPrice.Equal(decimal.NewFromInt(110)) || !got.StopLossPrice.Equal(decimal.NewFromFloat(96.5)) {
				t.Fatalf("round trip mismatch: %+v", got)
			}

			all, err := store.Query(ctx, nil)
			if err != nil || len(all) != 2 {
				t.Fatalf("query all: %v %d", err, len(all))
			}
			if all[0].ID != b.ID {
				t.Fatalf("expected newest first, got %s", all[0].Symbol)
			}

			if err := store.UpdateStatus(ctx, a.ID, models.StatusCompleted); err != nil {
				t.Fatalf("update: %v", err)
			}
			active := models.StatusActive
			act, _ := store.Query(ctx, &active)
			if len(act) != 1 || act[0].ID != b.ID {
				t.Fatalf("active = %+v", act)
			}
			done := models.StatusCompleted
			comp, _ := store.Query(ctx, &done)
			if len(comp) != 1 || comp[0].ClosedAt == nil {
				t.Fatalf("completed = %+v", comp)
			}
		})
	}
}

func TestSignalStore_TerminalIsFinal(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSignal("BTC", time.Now())
			_ = store.Insert(ctx, s)

			if err := store.UpdateStatus(ctx, s.ID, models.StatusCompleted); err != nil {
				t.Fatalf("first update: %v", err)
			}
			err := store.UpdateStatus(ctx, s.ID, models.StatusCancelled)
			if !errors.Is(err, domrepo.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
			got, _ := store.Get(ctx, s.ID)
			if got.Status != models.StatusCompleted {
				t.Fatalf("status changed to %s", got.Status)
			}

			if err := store.UpdateStatus(ctx, "missing", models.StatusCompleted); !errors.Is(err, domrepo.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if _, err := store.Get(ctx, "missing"); !errors.Is(err, domrepo.ErrNotFound) {
				t.Fatalf("expected ErrNotFound on get, got %v", err)
			}
		})
	}
}

func TestSignalStore_ConcurrentCloseHasOneWinner(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSignal("ETH", time.Now())
			_ = store.Insert(ctx, s)

			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for _, st := range []models.Status{models.StatusCompleted, models.StatusCancelled, models.StatusCompleted, models.StatusCancelled} {
				wg.Add(1)
				go func(st models.Status) {
					defer wg.Done()
					if err := store.UpdateStatus(ctx, s.ID, st); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}(st)
			}
			wg.Wait()
			if wins != 1 {
				t.Fatalf("expected exactly one winning update, got %d", wins)
			}
		})
	}
}
