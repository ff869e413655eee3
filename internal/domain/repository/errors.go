package repository

import "errors"

var (
	// ErrUnavailable means an external source could not provide data right now.
	ErrUnavailable = errors.New("data unavailable")
	// ErrInsufficientHistory means a symbol has too few bars to be scored.
	ErrInsufficientHistory = errors.New("insufficient price history")
	// ErrConflict means a status update lost against a terminal status.
	ErrConflict = errors.New("signal store conflict")
	// ErrNotFound means no signal exists with the given id.
	ErrNotFound = errors.New("signal not found")
	// ErrDegenerateLevels means entry, target and stop cannot form a valid signal.
	ErrDegenerateLevels = errors.New("degenerate signal levels")
)
