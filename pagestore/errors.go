package pagestore

import "errors"

var (
	// ErrCorruptIndex is returned when an index file is truncated or its
	// header length is out of bounds.
	ErrCorruptIndex = errors.New("pagestore: corrupt index")

	// ErrOutOfRange is returned for page coordinates outside the grid of
	// their mip level.
	ErrOutOfRange = errors.New("pagestore: page out of range")

	// ErrShortPayload is returned when a payload is smaller than its
	// metadata claims.
	ErrShortPayload = errors.New("pagestore: short payload")

	// ErrPayloadTooLarge is returned by Writer when a payload does not fit
	// the 16-bit size field of an entry.
	ErrPayloadTooLarge = errors.New("pagestore: payload too large")

	// ErrClosed is returned when reading from a closed store.
	ErrClosed = errors.New("pagestore: store closed")
)
