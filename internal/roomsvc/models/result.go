package models

import "time"

// GameResult is the immutable historical record of a finished room run.
// Created once, in the same transaction that flips the room to finished.
type GameResult struct {
	ID             int64     `json:"id"`
	RoomID         int64     `json:"room_id"`
	WinningEntryID int64     `json:"winning_entry_id"`
	WinnerUserID   int64     `json:"winner_user_id"`
	Prize          int64     `json:"prize"` // cents
	Rounds         int       `json:"rounds"`
	CreatedAt      time.Time `json:"created_at"`
}
