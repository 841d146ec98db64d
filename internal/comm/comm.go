package comm

import (
	"encoding/json"
	"time"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "join-room", "submit-roll"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

type PlayerData struct {
	Name    string `json:"name"`
	UserId  int64  `json:"user_id"`
	Balance string `json:"balance"`
}

// SeatInfo is one occupied position inside a room.
type SeatInfo struct {
	EntryId  int64 `json:"entry_id"`
	UserId   int64 `json:"user_id"`
	Position int   `json:"position"`
	Round    int   `json:"round"`
	IsBot    bool  `json:"is_bot"`
}

// RoomSnapshot is the full authoritative view of a room, published after
// every state change. Clients render from this, never from local edits.
type RoomSnapshot struct {
	RoomId       int64            `json:"room_id"`
	GameType     string           `json:"game_type"`
	State        string           `json:"state"`
	Capacity     int              `json:"capacity"`
	EntryFee     int64            `json:"entry_fee"`
	Round        int              `json:"round"`
	Seats        []SeatInfo       `json:"seats"`
	Balances     map[string]int64 `json:"balances,omitempty"` // duel running stakes, cents
	TurnUserId   int64            `json:"turn_user_id,omitempty"`
	TurnDeadline *time.Time       `json:"turn_deadline,omitempty"`
	LocksAt      *time.Time       `json:"locks_at,omitempty"`
	History      json.RawMessage  `json:"history,omitempty"`
	WinnerUserId int64            `json:"winner_user_id,omitempty"`
	Prize        int64            `json:"prize,omitempty"`
}

// RollEvent fires the moment dice land, before the round resolves,
// so clients can animate independently of settlement.
type RollEvent struct {
	RoomId int64  `json:"room_id"`
	UserId int64  `json:"user_id"`
	Round  int    `json:"round"`
	Dice   [2]int `json:"dice"`
}

// ResolvedEvent announces a settled round (duel) or drawn winner (draw).
type ResolvedEvent struct {
	RoomId       int64  `json:"room_id"`
	Round        int    `json:"round"`
	WinnerUserId int64  `json:"winner_user_id"`
	WinnerEntry  int64  `json:"winner_entry_id,omitempty"`
	Transfer     int64  `json:"transfer,omitempty"` // duel per-round damage, cents
	Push         bool   `json:"push,omitempty"`
	GameOver     bool   `json:"game_over"`
	Prize        int64  `json:"prize,omitempty"`
	ServerSeed   string `json:"server_seed,omitempty"` // revealed for audit on fair draws
}

type LobbyRoom struct {
	RoomId   int64  `json:"room_id"`
	GameType string `json:"game_type"`
	State    string `json:"state"`
	Capacity int    `json:"capacity"`
	EntryFee int64  `json:"entry_fee"`
	Occupied int    `json:"occupied"`
}

type LobbyUpdate struct {
	Rooms []LobbyRoom `json:"rooms"`
}

type BalanceStatus struct {
	Status    bool  `json:"status"`
	Timestamp int64 `json:"timestamp"`
}

type Res struct {
	Status bool   `json:"status"`
	Error  string `json:"error,omitempty"`
}
