package engine

import (
	"context"
	mrand "math/rand"
	"time"

	"github.com/gebeta/wager-services/internal/comm"
	"github.com/gebeta/wager-services/internal/roomsvc/config"
	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/gebeta/wager-services/internal/roomsvc/store"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Publisher is the broadcast gateway boundary. The engine only produces
// snapshots and events; delivery is someone else's problem.
type Publisher interface {
	PublishSnapshot(snap comm.RoomSnapshot)
	PublishRoll(ev comm.RollEvent)
	PublishResolved(ev comm.ResolvedEvent)
	PublishLobby(up comm.LobbyUpdate)
}

// Engine owns the room lifecycle: seats, turns, outcomes and settlement.
// It holds the pool directly because its critical sections are single
// transactions spanning several stores.
type Engine struct {
	pool *pgxpool.Pool
	cfg  config.Config

	rooms    *store.RoomStore
	entries  *store.EntryStore
	balances *store.BalanceStore
	results  *store.ResultStore
	bots     *store.BotStore
	users    *store.UserStore

	pub   Publisher
	sched *Scheduler
}

func NewEngine(pool *pgxpool.Pool, cfg config.Config,
	rooms *store.RoomStore, entries *store.EntryStore,
	balances *store.BalanceStore, results *store.ResultStore,
	bots *store.BotStore, users *store.UserStore, pub Publisher) *Engine {
	return &Engine{
		pool:     pool,
		cfg:      cfg,
		rooms:    rooms,
		entries:  entries,
		balances: balances,
		results:  results,
		bots:     bots,
		users:    users,
		pub:      pub,
		sched:    NewScheduler(),
	}
}

func (e *Engine) Scheduler() *Scheduler { return e.sched }

// botThinkDelay picks a randomized short delay for a bot's move, so bots
// read as players rather than instant responders.
func (e *Engine) botThinkDelay() time.Duration {
	min, max := e.cfg.BotThinkMin, e.cfg.BotThinkMax
	if max <= min {
		return min
	}
	return min + time.Duration(mrand.Int63n(int64(max-min)))
}

// publishRoomState reloads the room from the store and broadcasts the
// authoritative snapshot plus the lobby index. Always after commit,
// never inside the critical section.
func (e *Engine) publishRoomState(ctx context.Context, roomID int64) {
	if e.pub == nil {
		return
	}

	room, err := e.rooms.GetRoomByID(ctx, roomID)
	if err != nil || room == nil {
		log.Errorf("publishRoomState: reload room %d: %v", roomID, err)
		return
	}
	entries, err := e.entries.ListByRoom(ctx, roomID)
	if err != nil {
		log.Errorf("publishRoomState: entries for room %d: %v", roomID, err)
		return
	}

	e.pub.PublishSnapshot(BuildSnapshot(room, entries))
	e.publishLobby(ctx)
}

func (e *Engine) publishLobby(ctx context.Context) {
	if e.pub == nil {
		return
	}

	occ, err := e.rooms.ListLobby(ctx)
	if err != nil {
		log.Errorf("publishLobby: %v", err)
		return
	}

	up := comm.LobbyUpdate{Rooms: make([]comm.LobbyRoom, 0, len(occ))}
	for _, o := range occ {
		up.Rooms = append(up.Rooms, comm.LobbyRoom{
			RoomId:   o.Room.ID,
			GameType: o.Room.GameType,
			State:    o.Room.State,
			Capacity: o.Room.Capacity,
			EntryFee: o.Room.EntryFee,
			Occupied: o.Occupied,
		})
	}
	e.pub.PublishLobby(up)
}

// verifyUser is the identity gate on the join path. Verification itself
// is an external concern; here we only require a known, active account.
func (e *Engine) verifyUser(ctx context.Context, userID int64) error {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status != "ACTIVE" {
		return ErrNotParticipant
	}
	return nil
}

func entryForUser(entries []*models.Entry, userID int64) *models.Entry {
	for _, en := range entries {
		if en.UserID == userID {
			return en
		}
	}
	return nil
}
