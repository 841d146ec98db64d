package models

import "time"

// Entry is one seat held by one user in one room for one round.
// (room_id, round, position) is unique; for duel rooms a user holds at
// most one seat per round (enforced at reservation time).
type Entry struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Round     int       `json:"round"`
	Position  int       `json:"position"`
	IsBot     bool      `json:"is_bot"`
	CreatedAt time.Time `json:"created_at"`
}
