package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/gebeta/wager-services/internal/roomsvc/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type JoinResult struct {
	Entries []*models.Entry
	Room    *models.Room // state after the reservation committed
}

// Join reserves seats for a user: debits count*entryFee, grants the
// positions and, when the reservation fills the room, locks it in the
// same transaction and kicks off resolution so no poller is needed.
// Pass explicit positions or a count (positions win if both given).
func (e *Engine) Join(ctx context.Context, roomID, userID int64, positions []int, count int) (*JoinResult, error) {
	if len(positions) == 0 && count <= 0 {
		count = 1
	}

	if err := e.verifyUser(ctx, userID); err != nil {
		return nil, err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	room, err := e.rooms.GetRoomForUpdate(ctx, tx, roomID)
	if err != nil {
		return nil, mapRoomLookupErr(err)
	}
	if !room.IsOpen() {
		if room.IsFinished() {
			return nil, ErrRoomFinished
		}
		return nil, ErrRoomNotOpen
	}

	existing, err := e.entries.ListByRoomTx(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}

	// a user may not occupy two seats in a 1v1
	if room.GameType == models.GameDuel {
		if entryForUser(existing, userID) != nil {
			return nil, ErrDuplicateSeat
		}
		if len(positions) > 1 || count > 1 {
			return nil, ErrCapacityExceeded
		}
	}

	wanted, err := pickPositions(room, existing, positions, count)
	if err != nil {
		return nil, err
	}

	// re-check the wallet under the same transaction as the debit
	fee := room.EntryFee * int64(len(wanted))
	bal, err := e.balances.GetBalanceByUserIDTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if bal.LessThan(decimal.NewFromInt(fee)) {
		return nil, ErrInsufficientBalance
	}

	granted := make([]*models.Entry, 0, len(wanted))
	for _, pos := range wanted {
		entry, err := e.entries.CreateEntryTx(ctx, tx, roomID, userID, room.CurrentRound, pos, false)
		if err != nil {
			return nil, err
		}
		granted = append(granted, entry)
	}

	tref := uuid.NewString()
	if err := e.balances.DebitTx(ctx, tx, userID, fee, models.TTypeEntryFee, tref, &roomID, &granted[0].ID); err != nil {
		return nil, err
	}

	all := append(existing, granted...)
	filled := len(all) >= room.Capacity

	if filled {
		if err := e.lockFilledRoomTx(ctx, tx, room, all); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit join: %w", err)
	}

	log.Infof("room %d: user %d took positions %v (filled=%v)", roomID, userID, wanted, filled)

	e.afterLockTriggers(ctx, room, filled)
	e.publishRoomState(ctx, roomID)

	updated, err := e.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Entries: granted, Room: updated}, nil
}

// pickPositions validates requested positions against the locked re-read
// of occupancy, or auto-assigns the lowest free ones when only a count
// is given.
func pickPositions(room *models.Room, existing []*models.Entry, positions []int, count int) ([]int, error) {
	occupied := map[int]bool{}
	for _, en := range existing {
		occupied[en.Position] = true
	}

	if len(positions) > 0 {
		for _, pos := range positions {
			if pos < 1 || pos > room.Capacity {
				return nil, ErrInvalidPosition
			}
			if occupied[pos] {
				return nil, store.ErrSeatTaken
			}
		}
		if len(existing)+len(positions) > room.Capacity {
			return nil, ErrCapacityExceeded
		}
		return positions, nil
	}

	var free []int
	for pos := 1; pos <= room.Capacity && len(free) < count; pos++ {
		if !occupied[pos] {
			free = append(free, pos)
		}
	}
	if len(free) < count {
		return nil, ErrCapacityExceeded
	}
	return free, nil
}

// lockFilledRoomTx performs the open->locked transition for a room whose
// seats just filled, writing the game's initial meta in the same
// statement: duel rooms get round-1 turn state, draw rooms get their
// seed commitment.
func (e *Engine) lockFilledRoomTx(ctx context.Context, tx pgx.Tx, room *models.Room, all []*models.Entry) error {
	meta := room.Meta

	switch room.GameType {
	case models.GameDuel:
		d := meta.EnsureDuel()
		var starter int64
		for _, en := range all {
			d.Balances[models.UID(en.UserID)] = room.EntryFee
			if en.Position == 1 {
				starter = en.UserID
			}
		}
		deadline := time.Now().Add(e.cfg.TurnTimeout)
		d.TurnUserID = starter
		d.RoundStarter = starter
		d.TurnDeadline = &deadline
	case models.GameDraw:
		dm := meta.EnsureDraw()
		if dm.ServerSeedHash == "" {
			seed, hash, err := NewServerSeed()
			if err != nil {
				return fmt.Errorf("draw seed: %w", err)
			}
			dm.ServerSeed = seed
			dm.ServerSeedHash = hash
		}
	}

	return e.rooms.LockRoomTx(ctx, tx, room.ID, meta)
}

// afterLockTriggers runs the follow-ups a capacity-reached lock demands:
// the duel turn clock starts, the draw resolves immediately.
func (e *Engine) afterLockTriggers(ctx context.Context, room *models.Room, filled bool) {
	if !filled {
		return
	}

	switch room.GameType {
	case models.GameDuel:
		e.scheduleTurnDeadline(room.ID, 1)
	case models.GameDraw:
		// same finalize path as the sweep and the explicit request
		go func() {
			if _, err := e.Finalize(context.Background(), room.ID, 0); err != nil {
				log.Errorf("auto finalize room %d: %v", room.ID, err)
			}
		}()
	}
}
