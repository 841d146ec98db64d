package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
)

func newDuelMeta(balA, balB int64) *models.DuelMeta {
	m := (&models.RoomMeta{}).EnsureDuel()
	m.Balances["101"] = balA
	m.Balances["202"] = balB
	m.RoundStarter = 101
	m.TurnUserID = 101
	return m
}

func TestDuelDamage(t *testing.T) {
	if got := DuelDamage(50000, 20); got != 10000 {
		t.Fatalf("DuelDamage(50000, 20) = %d, want 10000", got)
	}
	if got := DuelDamage(500, 20); got != 100 {
		t.Fatalf("DuelDamage(500, 20) = %d, want 100", got)
	}
	// floor at 1 so a round is never free
	if got := DuelDamage(3, 20); got != 1 {
		t.Fatalf("DuelDamage(3, 20) = %d, want 1", got)
	}
	if got := DuelDamage(0, 20); got != 1 {
		t.Fatalf("DuelDamage(0, 20) = %d, want 1", got)
	}
}

func TestResolveDuelRoundWinner(t *testing.T) {
	m := newDuelMeta(500, 500)
	m.Rolls["101"] = []int{6, 5}
	m.Rolls["202"] = []int{2, 3}

	out, err := ResolveDuelRound(m, 1, 500, 20, time.Now())
	if err != nil {
		t.Fatalf("ResolveDuelRound: %v", err)
	}
	if out.WinnerUserID != 101 || out.LoserUserID != 202 {
		t.Fatalf("winner/loser = %d/%d, want 101/202", out.WinnerUserID, out.LoserUserID)
	}
	if out.Transfer != 100 {
		t.Fatalf("transfer = %d, want 100", out.Transfer)
	}
	if out.Push || out.GameOver {
		t.Fatalf("unexpected push=%v gameOver=%v", out.Push, out.GameOver)
	}
	if m.Balances["101"] != 600 || m.Balances["202"] != 400 {
		t.Fatalf("balances = %d/%d, want 600/400", m.Balances["101"], m.Balances["202"])
	}
	if len(m.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(m.History))
	}
	if m.History[0].WinnerUserID != 101 || m.History[0].Transfer != 100 {
		t.Fatalf("history record = %+v", m.History[0])
	}
	if len(m.Rolls) != 0 {
		t.Fatalf("rolls not cleared: %v", m.Rolls)
	}
	// winner opens the next round
	if m.RoundStarter != 101 || m.TurnUserID != 101 {
		t.Fatalf("next turn = starter %d turn %d, want 101/101", m.RoundStarter, m.TurnUserID)
	}
}

func TestResolveDuelRoundPush(t *testing.T) {
	m := newDuelMeta(500, 500)
	m.RoundStarter = 202
	m.TurnUserID = 0
	m.Rolls["101"] = []int{4, 3}
	m.Rolls["202"] = []int{6, 1}

	out, err := ResolveDuelRound(m, 3, 500, 20, time.Now())
	if err != nil {
		t.Fatalf("ResolveDuelRound: %v", err)
	}
	if !out.Push {
		t.Fatal("expected push")
	}
	if out.WinnerUserID != 0 || out.Transfer != 0 {
		t.Fatalf("push outcome carries winner %d transfer %d", out.WinnerUserID, out.Transfer)
	}
	if m.Balances["101"] != 500 || m.Balances["202"] != 500 {
		t.Fatalf("balances moved on push: %d/%d", m.Balances["101"], m.Balances["202"])
	}
	if len(m.History) != 1 || !m.History[0].Push {
		t.Fatalf("push round not recorded: %+v", m.History)
	}
	// same starter keeps the opening turn after a push
	if m.TurnUserID != 202 || m.RoundStarter != 202 {
		t.Fatalf("push changed starter: starter %d turn %d", m.RoundStarter, m.TurnUserID)
	}
}

func TestResolveDuelRoundBankruptcy(t *testing.T) {
	m := newDuelMeta(900, 100)
	m.Rolls["101"] = []int{5, 5}
	m.Rolls["202"] = []int{1, 2}

	out, err := ResolveDuelRound(m, 5, 500, 20, time.Now())
	if err != nil {
		t.Fatalf("ResolveDuelRound: %v", err)
	}
	if !out.GameOver {
		t.Fatal("expected game over on bankruptcy")
	}
	if out.Prize != 1000 {
		t.Fatalf("prize = %d, want 1000", out.Prize)
	}
	if m.Balances["101"] != 1000 || m.Balances["202"] != 0 {
		t.Fatalf("final balances = %d/%d, want 1000/0", m.Balances["101"], m.Balances["202"])
	}
	if m.TurnUserID != 0 || m.TurnDeadline != nil {
		t.Fatalf("finished game still holds a turn: %d %v", m.TurnUserID, m.TurnDeadline)
	}
}

func TestResolveDuelRoundExactBankruptcy(t *testing.T) {
	// loser lands on exactly zero; that still ends the game
	m := newDuelMeta(400, 100)
	m.Rolls["101"] = []int{6, 6}
	m.Rolls["202"] = []int{1, 1}

	out, err := ResolveDuelRound(m, 4, 500, 20, time.Now())
	if err != nil {
		t.Fatalf("ResolveDuelRound: %v", err)
	}
	if !out.GameOver || out.Prize != 500 {
		t.Fatalf("gameOver=%v prize=%d, want true/500", out.GameOver, out.Prize)
	}
}

func TestResolveDuelRoundRequiresBothRolls(t *testing.T) {
	m := newDuelMeta(500, 500)
	m.Rolls["101"] = []int{3, 3}

	if _, err := ResolveDuelRound(m, 1, 500, 20, time.Now()); err == nil {
		t.Fatal("expected error with one pending roll")
	}
}

func TestRollDiceRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := rollDice()
		if d[0] < 1 || d[0] > 6 || d[1] < 1 || d[1] > 6 {
			t.Fatalf("dice out of range: %v", d)
		}
	}
}

func TestNewServerSeedCommitment(t *testing.T) {
	seed, hash, err := NewServerSeed()
	if err != nil {
		t.Fatalf("NewServerSeed: %v", err)
	}
	if seed == "" || hash == "" {
		t.Fatal("empty seed or hash")
	}
	sum := sha256.Sum256([]byte(seed))
	if hex.EncodeToString(sum[:]) != hash {
		t.Fatal("hash does not commit to seed")
	}

	seed2, _, err := NewServerSeed()
	if err != nil {
		t.Fatalf("NewServerSeed: %v", err)
	}
	if seed == seed2 {
		t.Fatal("two seeds collided")
	}
}

func TestClientSeedOrderIndependent(t *testing.T) {
	a := ClientSeed([]int64{30, 10, 20})
	b := ClientSeed([]int64{10, 20, 30})
	if a != b {
		t.Fatalf("client seed depends on entry order: %q vs %q", a, b)
	}
	if a != "10-20-30" {
		t.Fatalf("client seed = %q, want 10-20-30", a)
	}
}

func TestFairDrawIndex(t *testing.T) {
	idx := FairDrawIndex("deadbeef", "1-2-3", 4)
	if idx < 0 || idx >= 4 {
		t.Fatalf("index %d out of range [0,4)", idx)
	}
	// replayable: same inputs, same winner
	if again := FairDrawIndex("deadbeef", "1-2-3", 4); again != idx {
		t.Fatalf("draw not deterministic: %d vs %d", idx, again)
	}
	if FairDrawIndex("deadbeef", "1-2-3", 0) != 0 {
		t.Fatal("empty draw should map to 0")
	}

	// different seeds should reach every slot eventually
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seed, _, err := NewServerSeed()
		if err != nil {
			t.Fatalf("NewServerSeed: %v", err)
		}
		seen[FairDrawIndex(seed, "1-2-3", 4)] = true
	}
	if len(seen) != 4 {
		t.Fatalf("200 draws hit only %d of 4 slots", len(seen))
	}
}

func TestDrawPrize(t *testing.T) {
	if got := DrawPrize(20000, 10); got != 200000 {
		t.Fatalf("DrawPrize(20000, 10) = %d, want 200000", got)
	}
}
