package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
)

func TestBuildSnapshotLockedDuel(t *testing.T) {
	deadline := time.Now().Add(20 * time.Second)
	room := &models.Room{
		ID:           7,
		GameType:     models.GameDuel,
		State:        models.StateLocked,
		Capacity:     2,
		EntryFee:     500,
		CurrentRound: 2,
	}
	d := room.Meta.EnsureDuel()
	d.Balances["101"] = 600
	d.Balances["202"] = 400
	d.TurnUserID = 202
	d.TurnDeadline = &deadline
	d.History = []models.RoundRecord{{Round: 1, WinnerUserID: 101, Transfer: 100}}

	entries := []*models.Entry{
		{ID: 11, RoomID: 7, UserID: 101, Round: 1, Position: 1},
		{ID: 12, RoomID: 7, UserID: 202, Round: 1, Position: 2, IsBot: true},
	}

	snap := BuildSnapshot(room, entries)

	if snap.RoomId != 7 || snap.GameType != models.GameDuel || snap.State != models.StateLocked {
		t.Fatalf("header mismatch: %+v", snap)
	}
	if len(snap.Seats) != 2 || snap.Seats[1].UserId != 202 || !snap.Seats[1].IsBot {
		t.Fatalf("seats mismatch: %+v", snap.Seats)
	}
	if snap.Balances["101"] != 600 || snap.Balances["202"] != 400 {
		t.Fatalf("balances mismatch: %v", snap.Balances)
	}
	if snap.TurnUserId != 202 || snap.TurnDeadline == nil {
		t.Fatalf("turn mismatch: %d %v", snap.TurnUserId, snap.TurnDeadline)
	}

	var hist []models.RoundRecord
	if err := json.Unmarshal(snap.History, &hist); err != nil {
		t.Fatalf("history unmarshal: %v", err)
	}
	if len(hist) != 1 || hist[0].WinnerUserID != 101 {
		t.Fatalf("history mismatch: %+v", hist)
	}

	// no winner fields until the room actually finishes
	if snap.WinnerUserId != 0 || snap.Prize != 0 {
		t.Fatalf("unfinished room exposes outcome: %+v", snap)
	}
}

func TestBuildSnapshotFinishedDraw(t *testing.T) {
	winEntry := int64(22)
	prize := int64(200000)
	room := &models.Room{
		ID:             9,
		GameType:       models.GameDraw,
		State:          models.StateFinished,
		Capacity:       4,
		EntryFee:       20000,
		CurrentRound:   1,
		WinningEntryID: &winEntry,
		PrizeAmount:    &prize,
	}
	room.Meta.EnsureDraw().ServerSeedHash = "cafe"

	entries := []*models.Entry{
		{ID: 21, RoomID: 9, UserID: 101, Round: 1, Position: 1},
		{ID: 22, RoomID: 9, UserID: 202, Round: 1, Position: 2},
	}

	snap := BuildSnapshot(room, entries)

	if snap.WinnerUserId != 202 {
		t.Fatalf("winner = %d, want 202", snap.WinnerUserId)
	}
	if snap.Prize != 200000 {
		t.Fatalf("prize = %d, want 200000", snap.Prize)
	}
}
