package storage

import "errors"

var (
	// ErrNotFound is returned by Load when no state file exists for an id.
	ErrNotFound = errors.New("session not found")
	// ErrCorruptState is returned by Load when the state file cannot be decoded.
	ErrCorruptState = errors.New("session state corrupt")
)
