package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gebeta/wager-services/internal/comm"
	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// RollResult reports what one submitted roll led to.
type RollResult struct {
	Dice     [2]int
	Round    int
	Resolved bool // both rolls were in, the round settled
	Outcome  DuelOutcome
	Room     *models.Room
}

// SubmitRoll handles one duel turn. Rolls are ordered by the turn state
// persisted in meta, not by request arrival: an out-of-turn roll is
// rejected, never queued.
func (e *Engine) SubmitRoll(ctx context.Context, roomID, userID int64) (*RollResult, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	room, err := e.rooms.GetRoomForUpdate(ctx, tx, roomID)
	if err != nil {
		return nil, mapRoomLookupErr(err)
	}
	if room.GameType != models.GameDuel {
		return nil, ErrWrongGame
	}
	if !room.IsLocked() {
		if room.IsFinished() {
			return nil, ErrRoomFinished
		}
		return nil, ErrRoomNotOpen
	}

	entries, err := e.entries.ListByRoomTx(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}
	if entryForUser(entries, userID) == nil {
		return nil, ErrNotParticipant
	}

	d := room.Meta.EnsureDuel()
	uid := models.UID(userID)

	if d.TurnUserID != userID {
		return nil, ErrNotYourTurn
	}
	if _, rolled := d.Rolls[uid]; rolled {
		return nil, ErrAlreadyRolled
	}

	dice := rollDice()
	d.Rolls[uid] = []int{dice[0], dice[1]}
	d.LastDice[uid] = d.Rolls[uid]

	round := room.CurrentRound
	res := &RollResult{Dice: dice, Round: round}

	if len(d.Rolls) < 2 {
		// opponent still to roll: pass the turn, restart the clock
		opp := opponentOf(entries, userID)
		deadline := time.Now().Add(e.cfg.TurnTimeout)
		d.TurnUserID = opp
		d.TurnDeadline = &deadline

		if err := e.rooms.UpdateMetaTx(ctx, tx, roomID, round, room.Meta); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit roll: %w", err)
		}

		e.emitRoll(roomID, userID, round, dice)
		e.publishRoomState(ctx, roomID)
		e.scheduleTurnDeadline(roomID, round)
		return res, nil
	}

	// both rolls present: settle the round under the same lock
	outcome, err := ResolveDuelRound(d, round, room.EntryFee, e.cfg.DuelDamagePct, time.Now())
	if err != nil {
		return nil, err
	}
	res.Resolved = true
	res.Outcome = outcome

	if outcome.GameOver {
		if err := e.settleDuelTx(ctx, tx, room, entries, outcome); err != nil {
			return nil, err
		}
	} else {
		deadline := time.Now().Add(e.cfg.TurnTimeout)
		d.TurnDeadline = &deadline
		if err := e.rooms.UpdateMetaTx(ctx, tx, roomID, round+1, room.Meta); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit round: %w", err)
	}

	e.sched.Cancel(roomID, round, "turn")
	e.emitRoll(roomID, userID, round, dice)
	e.emitResolved(roomID, round, outcome, room.Meta.Draw)
	e.publishRoomState(ctx, roomID)

	if !outcome.GameOver {
		e.scheduleTurnDeadline(roomID, round+1)
	} else {
		e.sched.CancelRoom(roomID)
	}

	res.Room, _ = e.rooms.GetRoomByID(ctx, roomID)
	return res, nil
}

// Forfeit concedes the game: the opponent takes the whole pot without a
// roll being required.
func (e *Engine) Forfeit(ctx context.Context, roomID, userID int64) (*models.GameResult, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	room, err := e.rooms.GetRoomForUpdate(ctx, tx, roomID)
	if err != nil {
		return nil, mapRoomLookupErr(err)
	}
	if room.GameType != models.GameDuel {
		return nil, ErrWrongGame
	}
	if !room.IsLocked() {
		if room.IsFinished() {
			return nil, ErrRoomFinished
		}
		return nil, ErrRoomNotOpen
	}

	entries, err := e.entries.ListByRoomTx(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}
	if entryForUser(entries, userID) == nil {
		return nil, ErrNotParticipant
	}

	d := room.Meta.EnsureDuel()
	winner := opponentOf(entries, userID)
	winKey, loseKey := models.UID(winner), models.UID(userID)

	outcome := DuelOutcome{
		Round:        room.CurrentRound,
		WinnerUserID: winner,
		LoserUserID:  userID,
		GameOver:     true,
		Prize:        d.Balances[winKey] + d.Balances[loseKey],
	}

	d.Balances[winKey] = outcome.Prize
	d.Balances[loseKey] = 0
	d.History = append(d.History, models.RoundRecord{
		Round:        room.CurrentRound,
		Rolls:        d.Rolls,
		WinnerUserID: winner,
		At:           time.Now(),
	})
	d.Rolls = map[string][]int{}
	d.TurnUserID = 0
	d.TurnDeadline = nil

	if err := e.settleDuelTx(ctx, tx, room, entries, outcome); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit forfeit: %w", err)
	}

	e.sched.CancelRoom(roomID)
	e.emitResolved(roomID, outcome.Round, outcome, nil)
	e.publishRoomState(ctx, roomID)

	log.Infof("room %d: user %d forfeited, winner %d", roomID, userID, winner)
	return e.results.GetLatestByRoom(ctx, roomID)
}

// settleDuelTx is the duel settlement block: one credit, one result row
// and the terminal state flip, all or nothing. Reachable from the final
// roll, a forfeit, and the timeout auto-roll; the guarded update in
// FinishRoomTx keeps a second path from paying twice.
func (e *Engine) settleDuelTx(ctx context.Context, tx pgx.Tx, room *models.Room, entries []*models.Entry, outcome DuelOutcome) error {
	winEntry := entryForUser(entries, outcome.WinnerUserID)
	if winEntry == nil {
		return ErrNotParticipant
	}

	tref := uuid.NewString()
	if err := e.balances.CreditTx(ctx, tx, outcome.WinnerUserID, outcome.Prize,
		models.TTypePrize, tref, &room.ID, &winEntry.ID); err != nil {
		return err
	}
	if _, err := e.results.CreateTx(ctx, tx, room.ID, winEntry.ID,
		outcome.WinnerUserID, outcome.Prize, room.CurrentRound); err != nil {
		return err
	}
	return e.rooms.FinishRoomTx(ctx, tx, room.ID, winEntry.ID, outcome.Prize, room.Meta)
}

// scheduleTurnDeadline arms the auto-roll for whoever holds the turn.
// Bots get a short randomized thinking delay instead of the full human
// deadline so bot rounds never drag.
func (e *Engine) scheduleTurnDeadline(roomID int64, round int) {
	ctx := context.Background()

	room, err := e.rooms.GetRoomByID(ctx, roomID)
	if err != nil || room == nil || room.Meta.Duel == nil {
		return
	}
	holder := room.Meta.Duel.TurnUserID
	if holder == 0 {
		return
	}

	delay := e.cfg.TurnTimeout
	if isBot, err := e.bots.IsBot(ctx, holder); err == nil && isBot {
		delay = e.botThinkDelay()
	}

	e.sched.Schedule(roomID, round, "turn", delay, func() {
		e.onTurnDeadline(roomID, round, holder)
	})
}

// onTurnDeadline fires when a turn clock lapses. The persisted state is
// re-validated first: if the round already resolved through another path
// the timer is stale and does nothing. Policy on a lapsed human turn is
// auto-roll, not forfeit, so every round resolves through the same math.
func (e *Engine) onTurnDeadline(roomID int64, round int, userID int64) {
	ctx := context.Background()

	room, err := e.rooms.GetRoomByID(ctx, roomID)
	if err != nil || room == nil {
		return
	}
	if !room.IsLocked() || room.CurrentRound != round {
		return // stale timer
	}
	d := room.Meta.Duel
	if d == nil || d.TurnUserID != userID {
		return
	}

	if _, err := e.SubmitRoll(ctx, roomID, userID); err != nil {
		// a concurrent roll may have won the lock; the room stays usable
		log.Warnf("room %d: auto-roll for user %d: %v", roomID, userID, err)
	}
}

func (e *Engine) emitRoll(roomID, userID int64, round int, dice [2]int) {
	if e.pub == nil {
		return
	}
	e.pub.PublishRoll(comm.RollEvent{
		RoomId: roomID,
		UserId: userID,
		Round:  round,
		Dice:   dice,
	})
}

func (e *Engine) emitResolved(roomID int64, round int, outcome DuelOutcome, draw *models.DrawMeta) {
	if e.pub == nil {
		return
	}
	ev := comm.ResolvedEvent{
		RoomId:       roomID,
		Round:        round,
		WinnerUserId: outcome.WinnerUserID,
		Transfer:     outcome.Transfer,
		Push:         outcome.Push,
		GameOver:     outcome.GameOver,
		Prize:        outcome.Prize,
	}
	if draw != nil && outcome.GameOver {
		ev.ServerSeed = draw.ServerSeed
	}
	e.pub.PublishResolved(ev)
}

func opponentOf(entries []*models.Entry, userID int64) int64 {
	for _, en := range entries {
		if en.UserID != userID {
			return en.UserID
		}
	}
	return 0
}
