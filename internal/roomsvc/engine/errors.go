package engine

import (
	"errors"

	"github.com/gebeta/wager-services/internal/roomsvc/store"
)

// Validation and resource errors reported synchronously to the caller.
// Stores contribute ErrSeatTaken and ErrConflict; everything else is
// decided here after the room row lock is held.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomNotOpen         = errors.New("room is not open")
	ErrRoomFinished        = errors.New("room already finished")
	ErrWrongGame           = errors.New("operation not valid for this game type")
	ErrDuplicateSeat       = errors.New("user already holds a seat in this room")
	ErrCapacityExceeded    = errors.New("not enough free positions")
	ErrInvalidPosition     = errors.New("position out of range or occupied")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotParticipant      = errors.New("user is not a participant of this room")
	ErrNotYourTurn         = errors.New("not this user's turn")
	ErrAlreadyRolled       = errors.New("user already rolled this round")
	ErrNotFinalizable      = errors.New("room is not ready to finalize")
	ErrNoBotAvailable      = errors.New("no bot available in the pool")
)

func mapRoomLookupErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrRoomNotFound
	}
	return err
}
