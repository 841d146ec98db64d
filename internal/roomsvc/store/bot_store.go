package store

import (
	"context"
	"fmt"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BotStore struct {
	db *pgxpool.Pool
}

func NewBotStore(db *pgxpool.Pool) *BotStore {
	return &BotStore{db: db}
}

// ClaimAvailableTx claims up to n available bots for a room. SKIP LOCKED
// keeps two rooms filling at the same moment from fighting over the same
// bot row; each claimer sees a disjoint set.
func (s *BotStore) ClaimAvailableTx(ctx context.Context, tx pgx.Tx, n int, roomID int64) ([]*models.Bot, error) {
	rows, err := tx.Query(ctx, `
		UPDATE bots
		SET status = 'busy', room_id = $2, updated_at = now()
		WHERE user_id IN (
			SELECT user_id FROM bots
			WHERE status = 'available'
			ORDER BY user_id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING user_id, name, status, room_id, updated_at
	`, n, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim bots: %w", err)
	}
	defer rows.Close()

	var bots []*models.Bot
	for rows.Next() {
		b := &models.Bot{}
		if err := rows.Scan(&b.UserID, &b.Name, &b.Status, &b.RoomID, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

// ReleaseByRoomTx returns a room's bots to the pool. Called on reset and
// when a room that never started sheds its fillers.
func (s *BotStore) ReleaseByRoomTx(ctx context.Context, tx pgx.Tx, roomID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE bots
		SET status = 'available', room_id = NULL, updated_at = now()
		WHERE room_id = $1
	`, roomID)
	if err != nil {
		return fmt.Errorf("failed to release bots for room %d: %w", roomID, err)
	}
	return nil
}

// IsBot reports whether the user id belongs to the bot pool.
func (s *BotStore) IsBot(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bots WHERE user_id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
