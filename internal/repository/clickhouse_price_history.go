package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"

	"github.com/shopspring/decimal"
)

// CHPriceHistory reads daily OHLCV bars from ClickHouse.
type CHPriceHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceHistory(db *sql.DB, table string, l *applogger.Logger) *CHPriceHistory {
	if table == "" {
		table = "candles_1d"
	}
	return &CHPriceHistory{db: db, table: table, l: l}
}

// FetchPriceHistory returns up to bars daily bars, oldest first. Query
// failures are reported as ErrUnavailable.
func (s *CHPriceHistory) FetchPriceHistory(ctx context.Context, symbol string, bars int) ([]models.PriceBar, error) {
	start := time.Now()
	const qtpl = `
        SELECT day, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY day DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, bars)
	if err != nil {
		s.l.Error("clickhouse price_history query error",
			applogger.String("symbol", symbol),
			applogger.Int("limit", bars),
			applogger.Error(err))
		return nil, fmt.Errorf("price history %s: %v: %w", symbol, err, domrepo.ErrUnavailable)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, bars)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar %s: %v: %w", symbol, err, domrepo.ErrUnavailable)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("price history rows %s: %v: %w", symbol, err, domrepo.ErrUnavailable)
	}

	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse price_history ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// FetchCurrentPrice returns the most recent daily close.
func (s *CHPriceHistory) FetchCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := fmt.Sprintf("SELECT close FROM %s FINAL WHERE symbol = ? ORDER BY day DESC LIMIT 1", s.table)
	var c float64
	err := s.db.QueryRowContext(ctx, q, symbol).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("no close for %s: %w", symbol, domrepo.ErrUnavailable)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest close %s: %v: %w", symbol, err, domrepo.ErrUnavailable)
	}
	if !(c > 0) {
		return decimal.Zero, fmt.Errorf("non-positive close %v for %s: %w", c, symbol, domrepo.ErrUnavailable)
	}
	return decimal.NewFromFloat(c), nil
}

var (
	_ domrepo.PriceHistory = (*CHPriceHistory)(nil)
	_ domrepo.CurrentPrice = (*CHPriceHistory)(nil)
)
