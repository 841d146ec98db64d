package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/gebeta/wager-services/configs"
	natscli "github.com/gebeta/wager-services/internal/nats"
	"github.com/gebeta/wager-services/internal/roomsvc/broker"
	svcconfig "github.com/gebeta/wager-services/internal/roomsvc/config"
	"github.com/gebeta/wager-services/internal/roomsvc/db"
	"github.com/gebeta/wager-services/internal/roomsvc/engine"
	"github.com/gebeta/wager-services/internal/roomsvc/service"
	"github.com/gebeta/wager-services/internal/roomsvc/store"
)

const SERVICE_NAME = "sweep"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	// Connect to NATS
	n, err := natscli.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	userStore := store.NewUserStore(dbpool)
	balanceStore := store.NewBalanceStore(dbpool)
	roomStore := store.NewRoomStore(dbpool)
	entryStore := store.NewEntryStore(dbpool)
	resultStore := store.NewResultStore(dbpool)
	botStore := store.NewBotStore(dbpool)

	userService := service.NewUserService(userStore)
	balanceService := service.NewBalanceService(balanceStore)
	roomService := service.NewRoomService(roomStore, entryStore)

	b := broker.NewBroker(n.Conn, userService, balanceService, roomService)
	eng := engine.NewEngine(dbpool, svcconfig.Load(),
		roomStore, entryStore, balanceStore, resultStore, botStore, userStore, b)
	b.SetEngine(eng)

	tiers := parseTiers(os.Getenv("ROOM_TIERS"))
	if len(tiers) == 0 {
		log.Printf("ROOM_TIERS not set, room provisioning disabled")
	}

	ctx := context.Background()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	log.Infof("%s service sweeping every 5s", SERVICE_NAME)

	for range ticker.C {
		if len(tiers) > 0 {
			eng.EnsureOpenRooms(ctx, tiers)
		}
		eng.SweepDueDraws(ctx)
		eng.SweepDuelWaitFill(ctx)
		eng.SweepLapsedTurns(ctx)
	}
}

// parseTiers reads the room provisioning plan from a comma separated
// list of gameType:entryFeeCents:capacity:count items, for example
// "duel:50000:2:3,draw:20000:4:2".
func parseTiers(raw string) []engine.RoomTier {
	var tiers []engine.RoomTier
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 4 {
			log.Errorf("skipping malformed room tier %q", item)
			continue
		}
		fee, err1 := strconv.ParseInt(parts[1], 10, 64)
		capacity, err2 := strconv.Atoi(parts[2])
		count, err3 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil || err3 != nil || fee <= 0 || capacity < 2 || count < 1 {
			log.Errorf("skipping invalid room tier %q", item)
			continue
		}
		tiers = append(tiers, engine.RoomTier{
			GameType: parts[0],
			EntryFee: fee,
			Capacity: capacity,
			Count:    count,
		})
	}
	return tiers
}
