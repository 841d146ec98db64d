package models

import (
	"time"
)

// Game types
const (
	GameDuel = "duel" // 1v1 dice duel
	GameDraw = "draw" // N-seat roulette draw
)

// Room states. The machine only ever moves forward:
// open -> locked -> finished. A reset is the single way back to open.
const (
	StateOpen     = "open"
	StateLocked   = "locked"
	StateFinished = "finished"
)

type Room struct {
	ID             int64      `json:"id"`
	GameType       string     `json:"game_type"`
	State          string     `json:"state"`
	Capacity       int        `json:"capacity"`
	EntryFee       int64      `json:"entry_fee"` // cents
	CurrentRound   int        `json:"current_round"`
	WinningEntryID *int64     `json:"winning_entry_id"` // set exactly once, at finish
	PrizeAmount    *int64     `json:"prize_amount"`
	Meta           RoomMeta   `json:"meta"`
	WaitUntil      *time.Time `json:"wait_until"`
	LocksAt        *time.Time `json:"locks_at"`
	LockedAt       *time.Time `json:"locked_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (r *Room) IsOpen() bool     { return r.State == StateOpen }
func (r *Room) IsLocked() bool   { return r.State == StateLocked }
func (r *Room) IsFinished() bool { return r.State == StateFinished }
