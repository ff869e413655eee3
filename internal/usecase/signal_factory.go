package usecase

import (
	"fmt"
	"math"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/internal/services/features"

	"github.com/shopspring/decimal"
)

const (
	// StopATRMultiple and TargetATRMultiple fix the risk/reward at 1:3.
	StopATRMultiple   = 2
	TargetATRMultiple = 6

	pricePlaces = 8
)

// Levels are the prices of a signal before it is materialized.
type Levels struct {
	Entry      decimal.Decimal
	Target     decimal.Decimal
	StopLoss   decimal.Decimal
	RiskReward decimal.Decimal
}

// SignalFactory materializes scored evaluations into Signals.
type SignalFactory struct {
	now func() time.Time
}

func NewSignalFactory() *SignalFactory {
	return &SignalFactory{now: time.Now}
}

// ComputeLevels derives target and stop from the entry and ATR.
func ComputeLevels(dir models.Direction, entry, atr decimal.Decimal) Levels {
	stopDist := atr.Mul(decimal.NewFromInt(StopATRMultiple))
	targetDist := atr.Mul(decimal.NewFromInt(TargetATRMultiple))

	l := Levels{Entry: entry}
	if dir == models.DirectionSell {
		l.StopLoss = entry.Add(stopDist).Round(pricePlaces)
		l.Target = entry.Sub(targetDist).Round(pricePlaces)
	} else {
		l.StopLoss = entry.Sub(stopDist).Round(pricePlaces)
		l.Target = entry.Add(targetDist).Round(pricePlaces)
	}
	l.RiskReward = RiskReward(l.Entry, l.Target, l.StopLoss)
	return l
}

// RiskReward is the distance to target over the distance to stop.
// A non-positive loss distance yields 0.
func RiskReward(entry, target, stop decimal.Decimal) decimal.Decimal {
	gain := target.Sub(entry).Abs()
	loss := entry.Sub(stop).Abs()
	if !loss.IsPositive() {
		return decimal.Zero
	}
	return gain.DivRound(loss, 4)
}

// ClassifyTimeframe picks the holding horizon from recent volatility of price changes.
func ClassifyTimeframe(ch features.PriceChanges) models.TimeframeClass {
	switch {
	case math.Abs(ch.Change1) > 3:
		return models.TimeframeDay
	case math.Abs(ch.Change5) > 10:
		return models.TimeframeShort
	case math.Abs(ch.Change20) > 20:
		return models.TimeframeMedium
	default:
		return models.TimeframeLong
	}
}

// Build creates an ACTIVE signal (without id) for a scored symbol.
// It refuses levels that would break the stop/entry/target ordering.
func (f *SignalFactory) Build(symbol string, entry, atr float64, ch features.PriceChanges, score models.ScoreBreakdown) (*models.Signal, error) {
	if !(entry > 0) || !(atr > 0) || math.IsInf(entry, 0) || math.IsInf(atr, 0) {
		return nil, fmt.Errorf("%s entry=%v atr=%v: %w", symbol, entry, atr, repository.ErrDegenerateLevels)
	}
	lv := ComputeLevels(score.Direction, decimal.NewFromFloat(entry), decimal.NewFromFloat(atr))

	s := &models.Signal{
		Symbol:          symbol,
		Direction:       score.Direction,
		EntryPrice:      lv.Entry,
		TargetPrice:     lv.Target,
		StopLossPrice:   lv.StopLoss,
		Status:          models.StatusActive,
		SuccessRate:     score.SuccessRate,
		DirectionScore:  score.DirectionScore,
		TimeframeClass:  ClassifyTimeframe(ch),
		RiskRewardRatio: lv.RiskReward,
		CreatedAt:       f.now().UTC(),
	}
	if !lv.RiskReward.IsPositive() || !s.LevelsOrdered() || !lv.Target.IsPositive() {
		return nil, fmt.Errorf("%s %s entry=%s target=%s stop=%s: %w",
			symbol, s.Direction, lv.Entry, lv.Target, lv.StopLoss, repository.ErrDegenerateLevels)
	}
	return s, nil
}
