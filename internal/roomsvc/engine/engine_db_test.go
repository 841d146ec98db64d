package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gebeta/wager-services/internal/roomsvc/config"
	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/gebeta/wager-services/internal/roomsvc/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests exercise the transactional paths against a live database.
// They run only when POSTGRES_URL points at a disposable Postgres; the
// schema is applied on connect and fixture ids are derived from the
// clock so repeated runs don't collide.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../db/schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func testEngine(pool *pgxpool.Pool) *Engine {
	cfg := config.Config{
		TurnTimeout:     time.Minute,
		BotThinkMin:     time.Second,
		BotThinkMax:     2 * time.Second,
		WaitFill:        time.Minute,
		DrawLockAfter:   time.Minute,
		FinalizeTimeout: 10 * time.Second,
		DrawMultiplier:  10,
		DuelDamagePct:   20,
	}
	return NewEngine(pool, cfg,
		store.NewRoomStore(pool),
		store.NewEntryStore(pool),
		store.NewBalanceStore(pool),
		store.NewResultStore(pool),
		store.NewBotStore(pool),
		store.NewUserStore(pool),
		nil)
}

func createTestUser(t *testing.T, pool *pgxpool.Pool, userID, depositCents int64) {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO users (user_id, name, status)
		VALUES ($1, $2, 'ACTIVE')
		ON CONFLICT (user_id) DO NOTHING
	`, userID, fmt.Sprintf("tester %d", userID))
	if err != nil {
		t.Fatalf("create user %d: %v", userID, err)
	}

	if depositCents > 0 {
		_, err = pool.Exec(ctx, `
			INSERT INTO balances (user_id, ttype, dr, cr, tref, status)
			VALUES ($1, 'deposit', $2, 0, $3, 'completed')
		`, userID, depositCents, fmt.Sprintf("TEST-%d-%d", userID, time.Now().UnixNano()))
		if err != nil {
			t.Fatalf("fund user %d: %v", userID, err)
		}
	}
}

func ledgerBalance(t *testing.T, pool *pgxpool.Pool, userID int64) int64 {
	t.Helper()
	var bal int64
	err := pool.QueryRow(context.Background(), `
		SELECT (COALESCE(SUM(dr), 0) - COALESCE(SUM(cr), 0))::bigint
		FROM balances
		WHERE user_id = $1 AND status = 'completed'
	`, userID).Scan(&bal)
	if err != nil {
		t.Fatalf("balance of %d: %v", userID, err)
	}
	return bal
}

// A wallet holding exactly one entry fee must not cover two concurrent
// joins, even into different rooms where the room row locks are
// disjoint.
func TestConcurrentCrossRoomJoinsCannotOverdraw(t *testing.T) {
	pool := testPool(t)
	eng := testEngine(pool)
	ctx := context.Background()

	userID := time.Now().UnixNano()
	createTestUser(t, pool, userID, 500)

	roomA, err := eng.rooms.CreateRoom(ctx, models.GameDraw, 4, 500, nil, nil)
	if err != nil {
		t.Fatalf("create room A: %v", err)
	}
	roomB, err := eng.rooms.CreateRoom(ctx, models.GameDraw, 4, 500, nil, nil)
	if err != nil {
		t.Fatalf("create room B: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, roomID := range []int64{roomA.ID, roomB.ID} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := eng.Join(ctx, id, userID, nil, 1)
			errs <- err
		}(roomID)
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("got %d successes, %d rejections; want 1 and 1", succeeded, rejected)
	}

	if bal := ledgerBalance(t, pool, userID); bal != 0 {
		t.Fatalf("ledger balance = %d, want 0 (never negative)", bal)
	}
}

// Two clients racing for the same position: exactly one holds the seat.
func TestConcurrentJoinsSameSeat(t *testing.T) {
	pool := testPool(t)
	eng := testEngine(pool)
	ctx := context.Background()

	base := time.Now().UnixNano()
	userA, userB := base+1, base+2
	createTestUser(t, pool, userA, 1000)
	createTestUser(t, pool, userB, 1000)

	room, err := eng.rooms.CreateRoom(ctx, models.GameDraw, 4, 200, nil, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, uid := range []int64{userA, userB} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := eng.Join(ctx, room.ID, id, []int{1}, 0)
			errs <- err
		}(uid)
	}
	wg.Wait()
	close(errs)

	var succeeded, seatTaken int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrSeatTaken):
			seatTaken++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if succeeded != 1 || seatTaken != 1 {
		t.Fatalf("got %d successes, %d seat-taken; want 1 and 1", succeeded, seatTaken)
	}

	entries, err := eng.entries.ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Position != 1 {
		t.Fatalf("room holds %d entries, want exactly the one seat", len(entries))
	}
}

// Concurrent and repeated finalize calls on one room must produce one
// credit and one result, with every caller observing the same outcome.
func TestFinalizeIdempotentUnderRace(t *testing.T) {
	pool := testPool(t)
	eng := testEngine(pool)
	ctx := context.Background()

	base := time.Now().UnixNano()
	userA, userB := base+1, base+2
	createTestUser(t, pool, userA, 200)
	createTestUser(t, pool, userB, 200)

	room, err := eng.rooms.CreateRoom(ctx, models.GameDraw, 2, 200, nil, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if _, err := eng.Join(ctx, room.ID, userA, []int{1}, 0); err != nil {
		t.Fatalf("join A: %v", err)
	}
	// second join fills and locks the room
	if _, err := eng.Join(ctx, room.ID, userB, []int{2}, 0); err != nil {
		t.Fatalf("join B: %v", err)
	}

	results := make(chan *models.GameResult, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := eng.Finalize(ctx, room.ID, 0)
			if err != nil {
				t.Errorf("finalize: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	var winners []int64
	for res := range results {
		if res == nil {
			t.Fatal("finalize returned no result")
		}
		winners = append(winners, res.WinningEntryID)
	}
	if len(winners) != 2 || winners[0] != winners[1] {
		t.Fatalf("callers observed different outcomes: %v", winners)
	}

	var resultCount, prizeCount int
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM game_results WHERE room_id = $1
	`, room.ID).Scan(&resultCount); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM balances WHERE room_id = $1 AND ttype = 'prize'
	`, room.ID).Scan(&prizeCount); err != nil {
		t.Fatalf("count prize rows: %v", err)
	}
	if resultCount != 1 || prizeCount != 1 {
		t.Fatalf("got %d results and %d prize credits, want exactly 1 each", resultCount, prizeCount)
	}
}

// Resetting a room that never reached an outcome returns the collected
// entry fees to their wallets.
func TestResetRefundsUnfinishedRoom(t *testing.T) {
	pool := testPool(t)
	eng := testEngine(pool)
	ctx := context.Background()

	userID := time.Now().UnixNano()
	createTestUser(t, pool, userID, 1000)

	room, err := eng.rooms.CreateRoom(ctx, models.GameDraw, 4, 200, nil, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if _, err := eng.Join(ctx, room.ID, userID, nil, 2); err != nil {
		t.Fatalf("join: %v", err)
	}
	if bal := ledgerBalance(t, pool, userID); bal != 600 {
		t.Fatalf("post-join balance = %d, want 600", bal)
	}

	reopened, err := eng.Reset(ctx, room.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !reopened.IsOpen() || reopened.CurrentRound != 1 {
		t.Fatalf("room not reopened: state=%s round=%d", reopened.State, reopened.CurrentRound)
	}

	if bal := ledgerBalance(t, pool, userID); bal != 1000 {
		t.Fatalf("post-reset balance = %d, want 1000 (fees refunded)", bal)
	}

	entries, err := eng.entries.ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("%d entries survived reset", len(entries))
	}
}
