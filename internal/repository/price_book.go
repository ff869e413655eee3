package repository

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// PriceBook keeps the last tick per symbol. Quotes older than staleAfter are
// reported as unavailable.
type PriceBook struct {
	mu         sync.RWMutex
	last       map[string]models.Tick
	staleAfter time.Duration
	now        func() time.Time
}

func NewPriceBook(staleAfter time.Duration) *PriceBook {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &PriceBook{last: make(map[string]models.Tick), staleAfter: staleAfter, now: time.Now}
}

// NormalizeSymbol strips an exchange prefix so "BINANCE:BTCUSDT" and
// "BTCUSDT" share a book entry.
func NormalizeSymbol(symbol string) string {
	if i := strings.LastIndexByte(symbol, ':'); i >= 0 {
		symbol = symbol[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Update records t unless an equal or newer tick is already held.
func (b *PriceBook) Update(t models.Tick) {
	if !(t.Price > 0) || math.IsInf(t.Price, 0) {
		return
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = b.now()
	}
	key := NormalizeSymbol(t.Symbol)

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.last[key]; ok && prev.Timestamp.After(t.Timestamp) {
		return
	}
	b.last[key] = t
}

func (b *PriceBook) FetchCurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	b.mu.RLock()
	t, ok := b.last[NormalizeSymbol(symbol)]
	b.mu.RUnlock()

	if !ok {
		return decimal.Zero, fmt.Errorf("no tick for %s: %w", symbol, domrepo.ErrUnavailable)
	}
	if age := b.now().Sub(t.Timestamp); age > b.staleAfter {
		return decimal.Zero, fmt.Errorf("tick for %s is %s old: %w", symbol, age.Truncate(time.Second), domrepo.ErrUnavailable)
	}
	return decimal.NewFromFloat(t.Price), nil
}

// Len returns the number of tracked symbols.
func (b *PriceBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.last)
}

var (
	_ domrepo.CurrentPrice = (*PriceBook)(nil)
	_ domrepo.TickSink     = (*PriceBook)(nil)
)
