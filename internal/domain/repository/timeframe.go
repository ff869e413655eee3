package repository

// DefaultTimeframe returns the bar resolution signals are scored on.
func DefaultTimeframe() Timeframe { return TF1d }
