package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
	log "github.com/sirupsen/logrus"
)

// RoomTier describes one provisioned rung of the lobby: keep Count open
// rooms of this shape available at all times.
type RoomTier struct {
	GameType string
	Capacity int
	EntryFee int64 // cents
	Count    int
}

// SweepDueDraws finalizes draw rooms whose scheduled lock time elapsed,
// even if under-filled; finalize itself tops them up with bots. Rooms
// finalized through another trigger in the meantime come back as
// idempotent no-ops.
func (e *Engine) SweepDueDraws(ctx context.Context) {
	rooms, err := e.rooms.ListDueDrawRooms(ctx)
	if err != nil {
		log.Errorf("sweep: list due draws: %v", err)
		return
	}

	for _, room := range rooms {
		if _, err := e.Finalize(ctx, room.ID, 0); err != nil {
			if errors.Is(err, ErrNotFinalizable) || errors.Is(err, ErrNoBotAvailable) {
				log.Infof("sweep: room %d not drawable yet: %v", room.ID, err)
				continue
			}
			log.Errorf("sweep: finalize room %d: %v", room.ID, err)
		}
	}
}

// SweepDuelWaitFill pairs a bot with every duel room that sat half-empty
// past its wait window, so a lone player always gets a game.
func (e *Engine) SweepDuelWaitFill(ctx context.Context) {
	rooms, err := e.rooms.ListDuelsPastWait(ctx)
	if err != nil {
		log.Errorf("sweep: list waiting duels: %v", err)
		return
	}

	for _, room := range rooms {
		if err := e.FillDuelWithBot(ctx, room.ID); err != nil {
			if errors.Is(err, ErrNoBotAvailable) || errors.Is(err, ErrRoomNotOpen) {
				continue
			}
			log.Errorf("sweep: bot fill room %d: %v", room.ID, err)
		}
	}
}

// SweepLapsedTurns recovers duel turns whose persisted deadline passed
// without the in-process timer firing (a restart drops all timers).
func (e *Engine) SweepLapsedTurns(ctx context.Context) {
	rooms, err := e.rooms.ListDuelsPastTurnDeadline(ctx)
	if err != nil {
		log.Errorf("sweep: list lapsed turns: %v", err)
		return
	}

	for _, room := range rooms {
		d := room.Meta.Duel
		if d == nil || d.TurnUserID == 0 {
			continue
		}
		e.onTurnDeadline(room.ID, room.CurrentRound, d.TurnUserID)
	}
}

// EnsureOpenRooms keeps the configured lobby shape stocked.
func (e *Engine) EnsureOpenRooms(ctx context.Context, tiers []RoomTier) {
	for _, tier := range tiers {
		n, err := e.rooms.CountOpenRooms(ctx, tier.GameType, tier.EntryFee)
		if err != nil {
			log.Errorf("sweep: count open rooms: %v", err)
			continue
		}
		for ; n < tier.Count; n++ {
			waitUntil := time.Now().Add(e.cfg.WaitFill)
			locksAt := time.Now().Add(e.cfg.DrawLockAfter)

			var w, l *time.Time
			w = &waitUntil
			if tier.GameType == models.GameDraw {
				l = &locksAt
			}

			room, err := e.rooms.CreateRoom(ctx, tier.GameType, tier.Capacity, tier.EntryFee, w, l)
			if err != nil {
				log.Errorf("sweep: create %s room: %v", tier.GameType, err)
				break
			}
			log.Infof("provisioned %s room %d (fee %d, capacity %d)", tier.GameType, room.ID, tier.EntryFee, tier.Capacity)
		}
	}
}

// FillDuelWithBot claims one pool bot and seats it through the same
// reservation path a human join takes, locking the room when it fills.
func (e *Engine) FillDuelWithBot(ctx context.Context, roomID int64) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	room, err := e.rooms.GetRoomForUpdate(ctx, tx, roomID)
	if err != nil {
		return mapRoomLookupErr(err)
	}
	if room.GameType != models.GameDuel || !room.IsOpen() {
		return ErrRoomNotOpen
	}

	entries, err := e.entries.ListByRoomTx(ctx, tx, roomID)
	if err != nil {
		return err
	}
	if len(entries) == 0 || len(entries) >= room.Capacity {
		return ErrRoomNotOpen
	}

	filled, err := e.fillWithBotsTx(ctx, tx, room, entries)
	if err != nil {
		return err
	}
	if err := e.lockFilledRoomTx(ctx, tx, room, filled); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bot fill: %w", err)
	}

	log.Infof("room %d: bot filled, duel starting", roomID)
	e.publishRoomState(ctx, roomID)
	e.scheduleTurnDeadline(roomID, 1)
	return nil
}
