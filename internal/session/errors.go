package session

import "errors"

// ErrTerminal is returned when a COMPLETED or FAILED session is mutated.
var ErrTerminal = errors.New("session is in a terminal state")

var ErrInvalidTransition = errors.New("invalid status transition")
