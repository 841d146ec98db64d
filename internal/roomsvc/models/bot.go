package models

import "time"

// Bot statuses
const (
	BotAvailable = "available"
	BotBusy      = "busy"
)

// Bot is a pooled filler identity. Availability is a persisted flag, not
// an in-process set, so any service instance can claim or release one.
type Bot struct {
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	RoomID    *int64    `json:"room_id,omitempty"` // set while busy
	UpdatedAt time.Time `json:"updated_at"`
}
