package store

import "errors"

var (
	// ErrSeatTaken means another reservation committed the position first.
	ErrSeatTaken = errors.New("seat already taken")

	// ErrConflict means a guarded state transition matched zero rows:
	// the room was not in the expected source state.
	ErrConflict = errors.New("room state conflict")

	ErrNotFound = errors.New("not found")
)
