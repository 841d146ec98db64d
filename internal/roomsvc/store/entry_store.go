package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EntryStore struct {
	db *pgxpool.Pool
}

func NewEntryStore(db *pgxpool.Pool) *EntryStore {
	return &EntryStore{db: db}
}

const entryColumns = `id, room_id, user_id, round, position, is_bot, created_at`

func scanEntry(row pgx.Row) (*models.Entry, error) {
	e := &models.Entry{}
	err := row.Scan(
		&e.ID,
		&e.RoomID,
		&e.UserID,
		&e.Round,
		&e.Position,
		&e.IsBot,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EntryStore) listEntries(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, query string, args ...any) ([]*models.Entry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *EntryStore) ListByRoom(ctx context.Context, roomID int64) ([]*models.Entry, error) {
	return s.listEntries(ctx, s.db, `
		SELECT `+entryColumns+` FROM entries
		WHERE room_id = $1
		ORDER BY position
	`, roomID)
}

// ListByRoomTx reads occupancy inside the caller's transaction, after the
// room row lock is held. This re-read, not any cached view, decides
// whether a requested position is actually free.
func (s *EntryStore) ListByRoomTx(ctx context.Context, tx pgx.Tx, roomID int64) ([]*models.Entry, error) {
	return s.listEntries(ctx, tx, `
		SELECT `+entryColumns+` FROM entries
		WHERE room_id = $1
		ORDER BY position
	`, roomID)
}

// CreateEntryTx grants one position. The unique_room_round_position
// constraint is the last line of defense when two reservations slip past
// the same occupancy read; the loser gets ErrSeatTaken.
func (s *EntryStore) CreateEntryTx(ctx context.Context, tx pgx.Tx, roomID, userID int64, round, position int, isBot bool) (*models.Entry, error) {
	query := `
		INSERT INTO entries (room_id, user_id, round, position, is_bot)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + entryColumns

	entry, err := scanEntry(tx.QueryRow(ctx, query, roomID, userID, round, position, isBot))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// unique constraint violations
			if pgErr.Code == "23505" && pgErr.ConstraintName == "unique_room_round_position" {
				return nil, ErrSeatTaken
			}
			// foreign key violations
			if pgErr.Code == "23503" {
				return nil, fmt.Errorf("invalid reference: %s", pgErr.Message)
			}
		}
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	return entry, nil
}

// GetActiveEntryForUser finds the entry, if any, holding the user in a
// room that has not finished. Used for client rehydration.
func (s *EntryStore) GetActiveEntryForUser(ctx context.Context, userID int64) (*models.Entry, error) {
	entry, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT e.id, e.room_id, e.user_id, e.round, e.position, e.is_bot, e.created_at
		FROM entries e
		JOIN rooms r ON r.id = e.room_id
		WHERE e.user_id = $1 AND r.state IN ('open', 'locked')
		ORDER BY e.created_at DESC
		LIMIT 1
	`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active entry: %w", err)
	}
	return entry, nil
}

// DeleteByRoomTx clears all entries for a room. Only the reset path may
// call this; entries are otherwise append-only for a room run.
func (s *EntryStore) DeleteByRoomTx(ctx context.Context, tx pgx.Tx, roomID int64) error {
	_, err := tx.Exec(ctx, `DELETE FROM entries WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete entries for room %d: %w", roomID, err)
	}
	return nil
}
