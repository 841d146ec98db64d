package engine

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
)

// rollDice returns two independent uniform values in [1,6].
func rollDice() [2]int {
	return [2]int{1 + mrand.Intn(6), 1 + mrand.Intn(6)}
}

func diceSum(dice []int) int {
	sum := 0
	for _, d := range dice {
		sum += d
	}
	return sum
}

// DuelDamage is the per-round transfer: max(1, floor(fee * pct / 100)).
func DuelDamage(entryFee, pct int64) int64 {
	d := entryFee * pct / 100
	if d < 1 {
		return 1
	}
	return d
}

// DuelOutcome is the result of resolving one duel round.
type DuelOutcome struct {
	Round        int
	WinnerUserID int64 // zero on push
	LoserUserID  int64
	Push         bool
	Transfer     int64
	GameOver     bool
	Prize        int64
}

// ResolveDuelRound settles one round against the meta's pending rolls:
// compares sums, moves the damage from loser to winner, appends history,
// clears the rolls and hands the next round's opening turn to the winner
// (the same starter keeps it on a push). On a bankruptcy it collapses
// the pot to the winner and reports GameOver with the final prize.
// Both rolls must be present.
func ResolveDuelRound(m *models.DuelMeta, round int, entryFee, damagePct int64, now time.Time) (DuelOutcome, error) {
	if len(m.Rolls) != 2 {
		return DuelOutcome{}, fmt.Errorf("round %d: expected 2 rolls, have %d", round, len(m.Rolls))
	}

	uids := make([]string, 0, 2)
	for uid := range m.Rolls {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	a, b := uids[0], uids[1]
	sumA, sumB := diceSum(m.Rolls[a]), diceSum(m.Rolls[b])

	out := DuelOutcome{Round: round}

	rec := models.RoundRecord{
		Round: round,
		Rolls: m.Rolls,
		At:    now,
	}

	switch {
	case sumA == sumB:
		// push: no transfer, round still advances and is recorded
		out.Push = true
		rec.Push = true
	case sumA > sumB:
		out.WinnerUserID, out.LoserUserID = models.ParseUID(a), models.ParseUID(b)
	default:
		out.WinnerUserID, out.LoserUserID = models.ParseUID(b), models.ParseUID(a)
	}

	if !out.Push {
		out.Transfer = DuelDamage(entryFee, damagePct)
		winKey, loseKey := models.UID(out.WinnerUserID), models.UID(out.LoserUserID)
		m.Balances[winKey] += out.Transfer
		m.Balances[loseKey] -= out.Transfer

		rec.WinnerUserID = out.WinnerUserID
		rec.Transfer = out.Transfer

		if m.Balances[loseKey] <= 0 {
			// pot collapses to the winner
			out.GameOver = true
			out.Prize = m.Balances[winKey] + m.Balances[loseKey]
			m.Balances[winKey] = out.Prize
			m.Balances[loseKey] = 0
		}
	}

	m.History = append(m.History, rec)
	m.Rolls = map[string][]int{}

	if out.GameOver {
		m.TurnUserID = 0
		m.TurnDeadline = nil
		return out, nil
	}

	// next round opens with the winner; a push keeps the same starter
	if !out.Push {
		m.RoundStarter = out.WinnerUserID
	}
	m.TurnUserID = m.RoundStarter
	return out, nil
}

// NewServerSeed generates a random draw seed and its public commitment
// hash. The seed itself stays server-side until the draw resolves.
func NewServerSeed() (seed, hash string, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	seed = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(seed))
	return seed, hex.EncodeToString(sum[:]), nil
}

// ClientSeed derives the audience half of the draw input from the frozen
// entry set: sorted entry ids, dash-joined. Deterministic for any
// observer who saw the locked room.
func ClientSeed(entryIDs []int64) string {
	sorted := append([]int64(nil), entryIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "-")
}

// FairDrawIndex maps the committed server seed and the client seed to an
// entry index through sha256, so the draw can be replayed after the seed
// is revealed.
func FairDrawIndex(serverSeed, clientSeed string, n int) int {
	if n <= 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(serverSeed + ":" + clientSeed))
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// DrawPrize is the fixed-multiplier roulette payout.
func DrawPrize(entryFee, multiplier int64) int64 {
	return entryFee * multiplier
}
