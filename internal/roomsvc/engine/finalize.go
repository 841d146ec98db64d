package engine

import (
	"context"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/gebeta/wager-services/internal/comm"
	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// Finalize turns a draw room's frozen entry set into exactly one payout.
// It is reachable from the join that filled the last seat, an explicit
// request and the maintenance sweep, so the whole protocol runs under
// the room row lock: re-read state, answer from the stored result if
// already finished, lock/top-up as needed, resolve, then credit winner,
// write the result and flip the state in one atomic unit.
// positionOverride > 0 forces the winner seat (operator override); it is
// consumed by this one call.
func (e *Engine) Finalize(ctx context.Context, roomID int64, positionOverride int) (*models.GameResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FinalizeTimeout)
	defer cancel()

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	room, err := e.rooms.GetRoomForUpdate(ctx, tx, roomID)
	if err != nil {
		return nil, mapRoomLookupErr(err)
	}

	// idempotent no-op: a repeat or racing call returns the stored result
	if room.IsFinished() {
		tx.Rollback(ctx)
		return e.results.GetLatestByRoom(context.WithoutCancel(ctx), roomID)
	}
	if room.GameType != models.GameDraw {
		return nil, ErrWrongGame
	}

	entries, err := e.entries.ListByRoomTx(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}

	due := room.LocksAt != nil && !room.LocksAt.After(time.Now())
	if room.IsOpen() && len(entries) < room.Capacity && !due {
		return nil, ErrNotFinalizable
	}
	if len(entries) == 0 {
		return nil, ErrNotFinalizable
	}

	// under-filled but due: top up with bots inside the same lock
	if len(entries) < room.Capacity {
		filled, err := e.fillWithBotsTx(ctx, tx, room, entries)
		if err != nil {
			return nil, err
		}
		entries = filled
	}

	if room.IsOpen() {
		if err := e.lockFilledRoomTx(ctx, tx, room, entries); err != nil {
			return nil, err
		}
		room.State = models.StateLocked
	}

	winner, err := pickDrawWinner(room, entries, positionOverride)
	if err != nil {
		return nil, err
	}

	prize := DrawPrize(room.EntryFee, e.cfg.DrawMultiplier)
	if dm := room.Meta.Draw; dm != nil {
		dm.PreselectedPos = 0 // an override never survives its draw
	}

	tref := uuid.NewString()
	if err := e.balances.CreditTx(ctx, tx, winner.UserID, prize,
		models.TTypePrize, tref, &room.ID, &winner.ID); err != nil {
		return nil, err
	}
	result, err := e.results.CreateTx(ctx, tx, room.ID, winner.ID, winner.UserID, prize, 1)
	if err != nil {
		return nil, err
	}
	if err := e.rooms.FinishRoomTx(ctx, tx, room.ID, winner.ID, prize, room.Meta); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit finalize: %w", err)
	}

	log.Infof("room %d: drawn winner user %d (entry %d), prize %d", roomID, winner.UserID, winner.ID, prize)

	// lock released; only now does anyone hear about it
	e.sched.CancelRoom(roomID)
	e.emitDrawResolved(room, winner, prize)
	e.publishRoomState(context.WithoutCancel(ctx), roomID)

	return result, nil
}

// pickDrawWinner chooses an entry: the operator override wins, then the
// stored preselection, then the seed-committed fair draw, then plain
// uniform random.
func pickDrawWinner(room *models.Room, entries []*models.Entry, positionOverride int) (*models.Entry, error) {
	if positionOverride == 0 && room.Meta.Draw != nil {
		positionOverride = room.Meta.Draw.PreselectedPos
	}
	if positionOverride > 0 {
		for _, en := range entries {
			if en.Position == positionOverride {
				return en, nil
			}
		}
		return nil, ErrInvalidPosition
	}

	if dm := room.Meta.Draw; dm != nil && dm.ServerSeed != "" {
		ids := make([]int64, len(entries))
		for i, en := range entries {
			ids[i] = en.ID
		}
		return entries[FairDrawIndex(dm.ServerSeed, ClientSeed(ids), len(entries))], nil
	}

	return entries[mrand.Intn(len(entries))], nil
}

// fillWithBotsTx claims pool bots for every empty position and walks
// them through the same reservation path a human join takes: entry row
// plus entry-fee debit, so settlement treats them identically.
func (e *Engine) fillWithBotsTx(ctx context.Context, tx pgx.Tx, room *models.Room, entries []*models.Entry) ([]*models.Entry, error) {
	missing := room.Capacity - len(entries)
	bots, err := e.bots.ClaimAvailableTx(ctx, tx, missing, room.ID)
	if err != nil {
		return nil, err
	}
	if len(bots) < missing {
		log.Warnf("room %d: wanted %d bots, pool had %d", room.ID, missing, len(bots))
	}
	if len(bots) == 0 {
		return nil, ErrNoBotAvailable
	}

	occupied := map[int]bool{}
	for _, en := range entries {
		occupied[en.Position] = true
	}

	i := 0
	for pos := 1; pos <= room.Capacity && i < len(bots); pos++ {
		if occupied[pos] {
			continue
		}
		bot := bots[i]
		i++

		entry, err := e.entries.CreateEntryTx(ctx, tx, room.ID, bot.UserID, room.CurrentRound, pos, true)
		if err != nil {
			return nil, err
		}
		tref := uuid.NewString()
		if err := e.balances.DebitTx(ctx, tx, bot.UserID, room.EntryFee,
			models.TTypeEntryFee, tref, &room.ID, &entry.ID); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (e *Engine) emitDrawResolved(room *models.Room, winner *models.Entry, prize int64) {
	if e.pub == nil {
		return
	}
	ev := comm.ResolvedEvent{
		RoomId:       room.ID,
		Round:        room.CurrentRound,
		WinnerUserId: winner.UserID,
		WinnerEntry:  winner.ID,
		GameOver:     true,
		Prize:        prize,
	}
	if dm := room.Meta.Draw; dm != nil {
		ev.ServerSeed = dm.ServerSeed
	}
	e.pub.PublishResolved(ev)
}
