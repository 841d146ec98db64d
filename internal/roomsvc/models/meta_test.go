package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUIDRoundTrip(t *testing.T) {
	if UID(9000000001) != "9000000001" {
		t.Fatalf("UID(9000000001) = %q", UID(9000000001))
	}
	if ParseUID("9000000001") != 9000000001 {
		t.Fatalf("ParseUID round trip failed")
	}
	if ParseUID("not-a-uid") != 0 {
		t.Fatalf("malformed key should parse to 0")
	}
}

func TestRoomMetaValidate(t *testing.T) {
	m := &RoomMeta{Duel: &DuelMeta{}}
	if err := m.Validate(GameDuel); err != nil {
		t.Fatalf("duel meta on duel room: %v", err)
	}
	if err := m.Validate(GameDraw); err == nil {
		t.Fatal("duel meta on draw room should fail")
	}

	m = &RoomMeta{Draw: &DrawMeta{}}
	if err := m.Validate(GameDraw); err != nil {
		t.Fatalf("draw meta on draw room: %v", err)
	}
	if err := m.Validate(GameDuel); err == nil {
		t.Fatal("draw meta on duel room should fail")
	}

	if err := (&RoomMeta{}).Validate("chess"); err == nil {
		t.Fatal("unknown game type should fail")
	}

	// empty meta is fine either way; rooms start with it
	if err := (&RoomMeta{}).Validate(GameDuel); err != nil {
		t.Fatalf("empty meta on duel room: %v", err)
	}
	if err := (&RoomMeta{}).Validate(GameDraw); err != nil {
		t.Fatalf("empty meta on draw room: %v", err)
	}
}

func TestEnsureDuelInitializesMaps(t *testing.T) {
	m := &RoomMeta{}
	d := m.EnsureDuel()
	if d.Balances == nil || d.Rolls == nil || d.LastDice == nil {
		t.Fatal("EnsureDuel left nil maps")
	}

	d.Balances["7"] = 500
	if m.EnsureDuel().Balances["7"] != 500 {
		t.Fatal("EnsureDuel replaced existing state")
	}
}

func TestDuelMetaRehydration(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &RoomMeta{}
	d := m.EnsureDuel()
	d.Balances["101"] = 600
	d.Balances["202"] = 400
	d.Rolls["101"] = []int{6, 5}
	d.TurnUserID = 202
	d.RoundStarter = 101
	d.TurnDeadline = &deadline
	d.History = append(d.History, RoundRecord{
		Round:        1,
		Rolls:        map[string][]int{"101": {6, 5}, "202": {2, 3}},
		WinnerUserID: 101,
		Transfer:     100,
		At:           deadline,
	})

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back RoomMeta
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Duel == nil {
		t.Fatal("duel variant lost")
	}
	if back.Duel.Balances["101"] != 600 || back.Duel.Balances["202"] != 400 {
		t.Fatalf("balances lost: %v", back.Duel.Balances)
	}
	if got := back.Duel.Rolls["101"]; len(got) != 2 || got[0] != 6 || got[1] != 5 {
		t.Fatalf("pending roll lost: %v", got)
	}
	if back.Duel.TurnUserID != 202 || back.Duel.RoundStarter != 101 {
		t.Fatalf("turn state lost: %d/%d", back.Duel.TurnUserID, back.Duel.RoundStarter)
	}
	if back.Duel.TurnDeadline == nil || !back.Duel.TurnDeadline.Equal(deadline) {
		t.Fatalf("deadline lost: %v", back.Duel.TurnDeadline)
	}
	if len(back.Duel.History) != 1 || back.Duel.History[0].WinnerUserID != 101 {
		t.Fatalf("history lost: %+v", back.Duel.History)
	}
}

func TestDrawMetaHidesSeedUntilSet(t *testing.T) {
	m := &RoomMeta{Draw: &DrawMeta{ServerSeedHash: "abcd"}}

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back RoomMeta
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Draw == nil || back.Draw.ServerSeedHash != "abcd" {
		t.Fatalf("commitment hash lost: %+v", back.Draw)
	}
	if back.Draw.ServerSeed != "" {
		t.Fatal("unset seed reappeared after rehydration")
	}
}
