package models

import (
	"fmt"
	"strconv"
	"time"
)

// RoomMeta is the per-round transient state persisted on the room row as
// JSONB. Exactly one variant is populated, matching the room's game type;
// a paused or restarted room rehydrates from this contract alone.
type RoomMeta struct {
	Duel *DuelMeta `json:"duel,omitempty"`
	Draw *DrawMeta `json:"draw,omitempty"`
}

// DuelMeta carries the 1v1 round state. Map keys are user ids rendered
// as decimal strings (JSON object keys must be strings).
type DuelMeta struct {
	Balances     map[string]int64 `json:"balances"` // running stakes, cents
	Rolls        map[string][]int `json:"rolls"`    // this round's pending rolls
	LastDice     map[string][]int `json:"last_dice,omitempty"`
	History      []RoundRecord    `json:"history"`
	TurnUserID   int64            `json:"turn_user_id"`
	RoundStarter int64            `json:"round_starter"` // who opened the current round
	TurnDeadline *time.Time       `json:"turn_deadline,omitempty"`
	Ready        map[string]bool  `json:"ready,omitempty"`
}

type RoundRecord struct {
	Round        int              `json:"round"`
	Rolls        map[string][]int `json:"rolls"`
	WinnerUserID int64            `json:"winner_user_id,omitempty"`
	Transfer     int64            `json:"transfer"`
	Push         bool             `json:"push,omitempty"`
	At           time.Time        `json:"at"`
}

// DrawMeta carries the roulette seed commitment and the operator
// override. The seed is written here at lock time but never leaves the
// store before the draw resolves; only its hash is broadcast while
// entries are still being taken.
type DrawMeta struct {
	ServerSeed     string `json:"server_seed,omitempty"`
	ServerSeedHash string `json:"server_seed_hash,omitempty"`
	PreselectedPos int    `json:"preselected_position,omitempty"`
}

// UID renders a user id as a meta map key.
func UID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// ParseUID is the inverse of UID; malformed keys yield 0.
func ParseUID(key string) int64 {
	n, _ := strconv.ParseInt(key, 10, 64)
	return n
}

// Validate checks that the meta variant matches the room's game type.
// Boundary validation: meta comes in from JSONB and from clients-of-clients,
// it is never trusted as an opaque bag.
func (m *RoomMeta) Validate(gameType string) error {
	switch gameType {
	case GameDuel:
		if m.Draw != nil {
			return fmt.Errorf("duel room carries draw meta")
		}
	case GameDraw:
		if m.Duel != nil {
			return fmt.Errorf("draw room carries duel meta")
		}
	default:
		return fmt.Errorf("unknown game type %q", gameType)
	}
	return nil
}

// EnsureDuel returns the duel variant, initializing empty maps so callers
// never touch a nil map after rehydration.
func (m *RoomMeta) EnsureDuel() *DuelMeta {
	if m.Duel == nil {
		m.Duel = &DuelMeta{}
	}
	if m.Duel.Balances == nil {
		m.Duel.Balances = map[string]int64{}
	}
	if m.Duel.Rolls == nil {
		m.Duel.Rolls = map[string][]int{}
	}
	if m.Duel.LastDice == nil {
		m.Duel.LastDice = map[string][]int{}
	}
	return m.Duel
}

func (m *RoomMeta) EnsureDraw() *DrawMeta {
	if m.Draw == nil {
		m.Draw = &DrawMeta{}
	}
	return m.Draw
}
