package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"
)

type barKey struct {
	symbol string
	day    time.Time
}

type dirtyBar struct {
	bar    models.PriceBar
	loaded bool
}

// CHCandleWriter rolls live ticks into daily bars and upserts them into the
// ReplacingMergeTree candle table read by CHPriceHistory. The first flush of a
// (symbol, day) merges with the stored row so a restart mid-day keeps the
// day's open and volume. Run one writer per deployment.
type CHCandleWriter struct {
	db    *sql.DB
	table string
	l     *applogger.Logger

	mu    sync.Mutex
	bars  map[barKey]*dirtyBar
	dirty map[barKey]struct{}
}

func NewCHCandleWriter(db *sql.DB, table string, l *applogger.Logger) *CHCandleWriter {
	if table == "" {
		table = "candles_1d"
	}
	return &CHCandleWriter{
		db:    db,
		table: table,
		l:     l,
		bars:  make(map[barKey]*dirtyBar),
		dirty: make(map[barKey]struct{}),
	}
}

// Update folds t into its UTC day bar. Invalid ticks are ignored.
func (w *CHCandleWriter) Update(t models.Tick) {
	if t.Symbol == "" || !(t.Price > 0) || math.IsInf(t.Price, 0) || t.Timestamp.IsZero() {
		return
	}
	day := t.Timestamp.UTC().Truncate(24 * time.Hour)
	k := barKey{symbol: t.Symbol, day: day}

	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bars[k]
	if !ok {
		b = &dirtyBar{bar: models.PriceBar{Timestamp: day, Open: t.Price, High: t.Price, Low: t.Price}}
		w.bars[k] = b
	}
	b.bar.High = math.Max(b.bar.High, t.Price)
	b.bar.Low = math.Min(b.bar.Low, t.Price)
	b.bar.Close = t.Price
	b.bar.Volume += math.Max(0, t.Volume)
	w.dirty[k] = struct{}{}
}

// Pending returns the number of bars waiting for a flush.
func (w *CHCandleWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirty)
}

// Flush writes every changed bar. Bars from days before the current one are
// dropped from memory once written.
func (w *CHCandleWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	keys := make([]barKey, 0, len(w.dirty))
	for k := range w.dirty {
		keys = append(keys, k)
	}
	w.mu.Unlock()
	if len(keys) == 0 {
		return nil
	}

	for _, k := range keys {
		if err := w.loadStored(ctx, k); err != nil {
			return err
		}
	}

	w.mu.Lock()
	rows := make([]models.PriceBar, 0, len(keys))
	symbols := make([]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, w.bars[k].bar)
		symbols = append(symbols, k.symbol)
		delete(w.dirty, k)
	}
	w.mu.Unlock()

	if err := w.storeBatch(ctx, symbols, rows); err != nil {
		w.mu.Lock()
		for _, k := range keys {
			w.dirty[k] = struct{}{}
		}
		w.mu.Unlock()
		return err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	w.mu.Lock()
	for k := range w.bars {
		if _, pending := w.dirty[k]; !pending && k.day.Before(today) {
			delete(w.bars, k)
		}
	}
	w.mu.Unlock()
	return nil
}

// loadStored merges the persisted bar for k into memory once.
func (w *CHCandleWriter) loadStored(ctx context.Context, k barKey) error {
	w.mu.Lock()
	loaded := w.bars[k].loaded
	w.mu.Unlock()
	if loaded {
		return nil
	}

	q := fmt.Sprintf("SELECT open, high, low, volume FROM %s FINAL WHERE symbol = ? AND day = ?", w.table)
	var open, high, low, vol float64
	err := w.db.QueryRowContext(ctx, q, k.symbol, k.day).Scan(&open, &high, &low, &vol)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load bar %s %s: %v: %w", k.symbol, k.day.Format(time.DateOnly), err, domrepo.ErrUnavailable)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.bars[k]
	if err == nil && open > 0 {
		b.bar.Open = open
		b.bar.High = math.Max(b.bar.High, high)
		b.bar.Low = math.Min(b.bar.Low, low)
		b.bar.Volume += vol
	}
	b.loaded = true
	return nil
}

func (w *CHCandleWriter) storeBatch(ctx context.Context, symbols []string, bars []models.PriceBar) error {
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := min(start+chunkSize, len(bars))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for i := start; i < end; i++ {
			b := bars[i]
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, symbols[i], b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, day, open, high, low, close, volume) VALUES %s", w.table, strings.Join(values, ","))
		if _, err := w.db.ExecContext(ctx, q, args...); err != nil {
			w.l.Error("clickhouse candles insert error", applogger.Int("rows", end-start), applogger.Error(err))
			return fmt.Errorf("insert candles: %w", err)
		}
	}
	w.l.Debug("clickhouse candles flushed", applogger.Int("rows", len(bars)))
	return nil
}

// Run flushes every interval until ctx ends, then flushes once more.
func (w *CHCandleWriter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := w.Flush(fctx); err != nil {
				w.l.Warn("clickhouse candles final_flush failed", applogger.Error(err))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.l.Warn("clickhouse candles flush failed", applogger.Error(err))
			}
		}
	}
}

var _ domrepo.TickSink = (*CHCandleWriter)(nil)
