package speech

import "errors"

var (
	// ErrStopped is returned for units cut off or dropped by Stop.
	ErrStopped = errors.New("speech stopped")
	ErrClosed  = errors.New("speech worker closed")
)
