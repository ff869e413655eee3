package repository

import (
	"context"
	"errors"
	"fmt"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// FallbackPrice tries each source in order and returns the first price.
// Only ErrUnavailable moves on to the next source.
type FallbackPrice struct {
	sources []domrepo.CurrentPrice
}

func NewFallbackPrice(sources ...domrepo.CurrentPrice) *FallbackPrice {
	out := make([]domrepo.CurrentPrice, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return &FallbackPrice{sources: out}
}

func (f *FallbackPrice) FetchCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var errs []error
	for _, src := range f.sources {
		p, err := src.FetchCurrentPrice(ctx, symbol)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domrepo.ErrUnavailable) {
			return decimal.Zero, err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return decimal.Zero, fmt.Errorf("no price source for %s: %w", symbol, domrepo.ErrUnavailable)
	}
	return decimal.Zero, errors.Join(errs...)
}

var _ domrepo.CurrentPrice = (*FallbackPrice)(nil)

// TickFanout forwards every tick to each sink in order.
type TickFanout []domrepo.TickSink

func (f TickFanout) Update(t models.Tick) {
	for _, s := range f {
		if s != nil {
			s.Update(t)
		}
	}
}

var _ domrepo.TickSink = TickFanout(nil)
