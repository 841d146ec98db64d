package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomStore struct {
	db *pgxpool.Pool
}

func NewRoomStore(db *pgxpool.Pool) *RoomStore {
	return &RoomStore{db: db}
}

const roomColumns = `id, game_type, state, capacity, entry_fee, current_round,
	winning_entry_id, prize_amount, meta, wait_until, locks_at, locked_at,
	finished_at, created_at, updated_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	r := &models.Room{}
	var metaRaw []byte
	err := row.Scan(
		&r.ID,
		&r.GameType,
		&r.State,
		&r.Capacity,
		&r.EntryFee,
		&r.CurrentRound,
		&r.WinningEntryID,
		&r.PrizeAmount,
		&metaRaw,
		&r.WaitUntil,
		&r.LocksAt,
		&r.LockedAt,
		&r.FinishedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &r.Meta); err != nil {
			return nil, fmt.Errorf("room %d: bad meta json: %w", r.ID, err)
		}
	}
	if err := r.Meta.Validate(r.GameType); err != nil {
		return nil, fmt.Errorf("room %d: %w", r.ID, err)
	}
	return r, nil
}

func (s *RoomStore) GetRoomByID(ctx context.Context, roomID int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	room, err := scanRoom(s.db.QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Room not found
		}
		return nil, fmt.Errorf("failed to get room by ID: %w", err)
	}
	return room, nil
}

// GetRoomForUpdate reads the room under its row lock. Every critical
// section (reservation, roll, finalize) starts here; the re-read after
// acquiring the lock is what makes cached views safe to discard.
func (s *RoomStore) GetRoomForUpdate(ctx context.Context, tx pgx.Tx, roomID int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1 FOR UPDATE`

	room, err := scanRoom(tx.QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock room %d: %w", roomID, err)
	}
	return room, nil
}

func (s *RoomStore) CreateRoom(ctx context.Context, gameType string, capacity int, entryFee int64, waitUntil, locksAt *time.Time) (*models.Room, error) {
	query := `
		INSERT INTO rooms (game_type, capacity, entry_fee, wait_until, locks_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + roomColumns

	room, err := scanRoom(s.db.QueryRow(ctx, query, gameType, capacity, entryFee, waitUntil, locksAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

// LockRoomTx transitions open -> locked, guarded against a concurrent
// transition. Meta is written in the same statement so a duel room's
// initial turn state or a draw room's seed commitment lands atomically
// with the lock.
func (s *RoomStore) LockRoomTx(ctx context.Context, tx pgx.Tx, roomID int64, meta models.RoomMeta) error {
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rooms
		SET state = 'locked', locked_at = now(), meta = $2, updated_at = now()
		WHERE id = $1 AND state = 'open'
	`, roomID, metaRaw)
	if err != nil {
		return fmt.Errorf("failed to lock room %d: %w", roomID, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	return nil
}

// UpdateMetaTx persists round-transient state (pending rolls, balances,
// history) and the round counter without touching the room state.
func (s *RoomStore) UpdateMetaTx(ctx context.Context, tx pgx.Tx, roomID int64, round int, meta models.RoomMeta) error {
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rooms
		SET current_round = $2, meta = $3, updated_at = now()
		WHERE id = $1 AND state = 'locked'
	`, roomID, round, metaRaw)
	if err != nil {
		return fmt.Errorf("failed to update room %d meta: %w", roomID, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	return nil
}

// FinishRoomTx is the terminal transition. Guarded on state='locked' so
// that of N racing finalizers exactly one commits it; the rest see
// ErrConflict and re-read the stored result.
func (s *RoomStore) FinishRoomTx(ctx context.Context, tx pgx.Tx, roomID, winningEntryID int64, prize int64, meta models.RoomMeta) error {
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rooms
		SET state = 'finished', winning_entry_id = $2, prize_amount = $3,
		    meta = $4, finished_at = now(), updated_at = now()
		WHERE id = $1 AND state = 'locked'
	`, roomID, winningEntryID, prize, metaRaw)
	if err != nil {
		return fmt.Errorf("failed to finish room %d: %w", roomID, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	return nil
}

// ResetRoomTx returns a room to open with round 1 and empty meta.
func (s *RoomStore) ResetRoomTx(ctx context.Context, tx pgx.Tx, roomID int64, waitUntil, locksAt *time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE rooms
		SET state = 'open', current_round = 1, winning_entry_id = NULL,
		    prize_amount = NULL, meta = '{}', wait_until = $2, locks_at = $3,
		    locked_at = NULL, finished_at = NULL, updated_at = now()
		WHERE id = $1
	`, roomID, waitUntil, locksAt)
	if err != nil {
		return fmt.Errorf("failed to reset room %d: %w", roomID, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *RoomStore) listRooms(ctx context.Context, query string, args ...any) ([]*models.Room, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// ListDueDrawRooms finds draw rooms whose scheduled lock time elapsed and
// that still await finalize. The maintenance sweep feeds these into the
// same finalize path every other trigger uses.
func (s *RoomStore) ListDueDrawRooms(ctx context.Context) ([]*models.Room, error) {
	return s.listRooms(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE game_type = 'draw'
		  AND state IN ('open', 'locked')
		  AND locks_at IS NOT NULL AND locks_at <= now()
	`)
}

// ListDuelsPastWait finds duel rooms still waiting for a second player
// past the wait-and-fill window.
func (s *RoomStore) ListDuelsPastWait(ctx context.Context) ([]*models.Room, error) {
	return s.listRooms(ctx, `
		SELECT `+roomColumns+`
		FROM rooms r
		WHERE r.game_type = 'duel'
		  AND r.state = 'open'
		  AND r.wait_until IS NOT NULL AND r.wait_until <= now()
		  AND EXISTS (SELECT 1 FROM entries e WHERE e.room_id = r.id)
	`)
}

// ListDuelsPastTurnDeadline finds locked duel rooms whose persisted turn
// deadline lapsed. In-process timers normally beat this query; it exists
// so a service restart cannot strand a turn.
func (s *RoomStore) ListDuelsPastTurnDeadline(ctx context.Context) ([]*models.Room, error) {
	return s.listRooms(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE game_type = 'duel'
		  AND state = 'locked'
		  AND (meta->'duel'->>'turn_deadline') IS NOT NULL
		  AND (meta->'duel'->>'turn_deadline')::timestamptz <= now()
	`)
}

func (s *RoomStore) CountOpenRooms(ctx context.Context, gameType string, entryFee int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM rooms
		WHERE game_type = $1 AND entry_fee = $2 AND state = 'open'
	`, gameType, entryFee).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open rooms: %w", err)
	}
	return n, nil
}

// RoomOccupancy is a lobby line: a room plus its live seat count.
type RoomOccupancy struct {
	Room     models.Room
	Occupied int
}

// ListLobby aggregates occupancy across non-finished rooms for the
// discovery view.
func (s *RoomStore) ListLobby(ctx context.Context) ([]RoomOccupancy, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.game_type, r.state, r.capacity, r.entry_fee,
		       r.current_round, COUNT(e.id)
		FROM rooms r
		LEFT JOIN entries e ON e.room_id = r.id
		WHERE r.state IN ('open', 'locked')
		GROUP BY r.id
		ORDER BY r.entry_fee, r.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoomOccupancy
	for rows.Next() {
		var o RoomOccupancy
		err := rows.Scan(
			&o.Room.ID,
			&o.Room.GameType,
			&o.Room.State,
			&o.Room.Capacity,
			&o.Room.EntryFee,
			&o.Room.CurrentRound,
			&o.Occupied,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
