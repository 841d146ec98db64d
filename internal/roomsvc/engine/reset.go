package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Reset clears a room for reuse: entries and history go, bots return to
// the pool, the room reopens at round 1 with fresh deadlines. The only
// way back to open from any state. Resetting a room that never reached
// an outcome refunds every collected entry fee in the same transaction,
// so the ledger ends where it started; a finished room's fees already
// settled into the prize and stay put.
func (e *Engine) Reset(ctx context.Context, roomID int64) (*models.Room, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	room, err := e.rooms.GetRoomForUpdate(ctx, tx, roomID)
	if err != nil {
		return nil, mapRoomLookupErr(err)
	}

	entries, err := e.entries.ListByRoomTx(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}

	if !room.IsFinished() {
		for _, en := range entries {
			tref := uuid.NewString()
			if err := e.balances.CreditTx(ctx, tx, en.UserID, room.EntryFee,
				models.TTypeRefund, tref, &roomID, &en.ID); err != nil {
				return nil, err
			}
		}
	}

	if err := e.entries.DeleteByRoomTx(ctx, tx, roomID); err != nil {
		return nil, err
	}
	if err := e.bots.ReleaseByRoomTx(ctx, tx, roomID); err != nil {
		return nil, err
	}

	waitUntil := time.Now().Add(e.cfg.WaitFill)
	locksAt := time.Now().Add(e.cfg.DrawLockAfter)
	if err := e.rooms.ResetRoomTx(ctx, tx, roomID, &waitUntil, &locksAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reset: %w", err)
	}

	e.sched.CancelRoom(roomID)
	e.publishRoomState(ctx, roomID)

	log.Infof("room %d reset to open (%d entries cleared)", roomID, len(entries))
	return e.rooms.GetRoomByID(ctx, roomID)
}
