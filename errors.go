package vtstream

import "errors"

var (
	// ErrInvalidConfig is returned when a Config or option is unusable.
	ErrInvalidConfig = errors.New("vtstream: invalid config")

	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = errors.New("vtstream: engine closed")
)
