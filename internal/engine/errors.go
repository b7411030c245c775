package engine

import (
	"errors"

	"github.com/rshade/finwatch/internal/inflight"
)

// Engine errors.
var (
	// ErrLoadInProgress is returned when another full load holds the load guard.
	ErrLoadInProgress = errors.New("full load already in progress")

	// ErrAlreadyInFlight is returned when a reload for the same key is still running.
	ErrAlreadyInFlight = inflight.ErrAlreadyInFlight

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")

	// ErrUnknownKey is returned when a key is not in the tracked set.
	ErrUnknownKey = errors.New("key not tracked")

	// ErrSuperseded is returned when the tracked set changed while a reload ran.
	ErrSuperseded = errors.New("epoch superseded")

	// ErrInvalidOptions is returned for out-of-range tunables.
	ErrInvalidOptions = errors.New("invalid engine options")
)
