package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResultStore struct {
	db *pgxpool.Pool
}

func NewResultStore(db *pgxpool.Pool) *ResultStore {
	return &ResultStore{db: db}
}

// CreateTx records the immutable outcome of a finished room run. Always
// called inside the settlement transaction, never on its own.
func (s *ResultStore) CreateTx(ctx context.Context, tx pgx.Tx, roomID, winningEntryID, winnerUserID, prize int64, rounds int) (*models.GameResult, error) {
	query := `
		INSERT INTO game_results (room_id, winning_entry_id, winner_user_id, prize, rounds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, room_id, winning_entry_id, winner_user_id, prize, rounds, created_at
	`

	r := &models.GameResult{}
	err := tx.QueryRow(ctx, query, roomID, winningEntryID, winnerUserID, prize, rounds).Scan(
		&r.ID,
		&r.RoomID,
		&r.WinningEntryID,
		&r.WinnerUserID,
		&r.Prize,
		&r.Rounds,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create game result: %w", err)
	}
	return r, nil
}

// GetLatestByRoom returns the most recent result for a room, or nil.
// Finalize on an already finished room answers from here.
func (s *ResultStore) GetLatestByRoom(ctx context.Context, roomID int64) (*models.GameResult, error) {
	r := &models.GameResult{}
	err := s.db.QueryRow(ctx, `
		SELECT id, room_id, winning_entry_id, winner_user_id, prize, rounds, created_at
		FROM game_results
		WHERE room_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, roomID).Scan(
		&r.ID,
		&r.RoomID,
		&r.WinningEntryID,
		&r.WinnerUserID,
		&r.Prize,
		&r.Rounds,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get result for room %d: %w", roomID, err)
	}
	return r, nil
}
