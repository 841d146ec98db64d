package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gebeta/wager-services/internal/comm"
	"github.com/gebeta/wager-services/internal/roomsvc/engine"
	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/gebeta/wager-services/internal/roomsvc/service"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	topicOut = "room.service"   // events and responses toward the socket relay
	topicIn  = "socket.service" // commands relayed from web clients
)

type Broker struct {
	Conn           *nats.Conn
	UserService    *service.UserService
	BalanceService *service.BalanceService
	RoomService    *service.RoomService
	Engine         *engine.Engine
}

func NewBroker(nc *nats.Conn, userService *service.UserService,
	balanceService *service.BalanceService, roomService *service.RoomService) *Broker {
	return &Broker{
		Conn:           nc,
		UserService:    userService,
		BalanceService: balanceService,
		RoomService:    roomService,
	}
}

// SetEngine wires the engine after construction; the engine publishes
// through this broker, so the two are built in sequence.
func (b *Broker) SetEngine(e *engine.Engine) {
	b.Engine = e
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	err := json.Unmarshal(msgNat.Data, &msg)
	if err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case "init":
		userInfo := models.User{}
		if err := json.Unmarshal(msg.Data, &userInfo); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		user, err := b.UserService.GetOrCreateUser(userInfo)
		if err != nil {
			log.Errorf("Error [UserService.GetOrCreateUser] %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		balance, err := b.BalanceService.GetUserBalance(ctx, user.UserId)
		if err != nil {
			log.Errorf("Error [BalanceService.GetUserBalance] %s", err)
		}

		// ledger amounts are cents; clients see whole currency
		b.publishTyped("init-response", comm.PlayerData{
			Name:    user.Name,
			Balance: balance.Shift(-2).StringFixed(2),
			UserId:  user.UserId,
		}, msg.SocketId)

	case "get-balance":
		var request struct {
			UserID int64 `json:"user_id"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		balance, err := b.BalanceService.GetUserBalance(ctx, request.UserID)
		if err != nil {
			log.Errorf("Error getBalance %s", err)
			return
		}

		b.publishTyped("balance-resp", comm.PlayerData{
			UserId:  request.UserID,
			Balance: balance.Shift(-2).StringFixed(2),
		}, msg.SocketId)

	case "get-lobby":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rooms, err := b.RoomService.Lobby(ctx)
		if err != nil {
			log.Errorf("Error [RoomService.Lobby] %s", err)
			return
		}
		b.publishTyped("lobby-response", comm.LobbyUpdate{Rooms: rooms}, msg.SocketId)

	case "check-active-room":
		var request struct {
			UserID int64 `json:"user_id"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error decoding request: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		room, _, err := b.RoomService.ActiveRoomForUser(ctx, request.UserID)
		if err != nil {
			log.Errorf("Error checking active room for user %d: %s", request.UserID, err)
			return
		}
		if room == nil {
			return
		}

		entries, err := b.RoomService.GetRoomEntries(ctx, room.ID)
		if err != nil {
			log.Errorf("Error retrieving entries: %s", err)
			return
		}
		b.publishTyped("check-active-room-response", engine.BuildSnapshot(room, entries), msg.SocketId)

	case "join-room":
		var request struct {
			UserID    int64 `json:"user_id"`
			RoomID    int64 `json:"room_id"`
			Positions []int `json:"positions,omitempty"`
			Count     int   `json:"count,omitempty"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error unmarshalling join-room: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := b.Engine.Join(ctx, request.RoomID, request.UserID, request.Positions, request.Count)
		if err != nil {
			if err == engine.ErrInsufficientBalance {
				b.publishTyped("insufficient-balance-response", comm.BalanceStatus{
					Status:    false,
					Timestamp: time.Now().UnixMilli(),
				}, msg.SocketId)
				return
			}
			log.Errorf("Error [Engine.Join]: %s", err)
			b.publishTyped("join-room-response", comm.Res{Status: false, Error: err.Error()}, msg.SocketId)
			return
		}

		entries, err := b.RoomService.GetRoomEntries(ctx, result.Room.ID)
		if err != nil {
			log.Errorf("Error [RoomService.GetRoomEntries]: %s", err)
		}
		b.publishTyped("join-room-response", engine.BuildSnapshot(result.Room, entries), msg.SocketId)

	case "submit-roll":
		var request struct {
			UserID int64 `json:"user_id"`
			RoomID int64 `json:"room_id"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error unmarshalling submit-roll: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := b.Engine.SubmitRoll(ctx, request.RoomID, request.UserID); err != nil {
			log.Errorf("Error [Engine.SubmitRoll]: %s", err)
			b.publishTyped("submit-roll-response", comm.Res{Status: false, Error: err.Error()}, msg.SocketId)
			return
		}
		// roll and snapshot events already went out on the room topic

	case "forfeit":
		var request struct {
			UserID int64 `json:"user_id"`
			RoomID int64 `json:"room_id"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error unmarshalling forfeit: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := b.Engine.Forfeit(ctx, request.RoomID, request.UserID); err != nil {
			log.Errorf("Error [Engine.Forfeit]: %s", err)
			b.publishTyped("forfeit-response", comm.Res{Status: false, Error: err.Error()}, msg.SocketId)
		}

	case "finalize-room":
		var request struct {
			RoomID           int64 `json:"room_id"`
			PositionOverride int   `json:"position_override,omitempty"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error unmarshalling finalize-room: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := b.Engine.Finalize(ctx, request.RoomID, request.PositionOverride)
		if err != nil {
			log.Errorf("Error [Engine.Finalize]: %s", err)
			b.publishTyped("finalize-room-response", comm.Res{Status: false, Error: err.Error()}, msg.SocketId)
			return
		}
		b.publishTyped("finalize-room-response", result, msg.SocketId)

	case "reset-room":
		var request struct {
			RoomID int64 `json:"room_id"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error unmarshalling reset-room: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := b.Engine.Reset(ctx, request.RoomID); err != nil {
			log.Errorf("Error [Engine.Reset]: %s", err)
			b.publishTyped("reset-room-response", comm.Res{Status: false, Error: err.Error()}, msg.SocketId)
			return
		}
		b.publishTyped("reset-room-response", comm.Res{Status: true}, msg.SocketId)

	default:
		log.Errorf("Unknown message type %q", msg.Type)
	}
}

// publishTyped marshals a payload into the WSMessage envelope and sends
// it toward the socket relay.
func (b *Broker) publishTyped(msgType string, payload any, socketId string) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("[%s] unable to marshal payload: %s", msgType, err)
		return
	}

	msg := &comm.WSMessage{
		Type:     msgType,
		Data:     data,
		SocketId: socketId,
	}

	out, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(topicOut, out)
}

// engine.Publisher implementation: room events fan out with no socket id
// so the relay broadcasts them to every viewer subscribed to the room.

func (b *Broker) PublishSnapshot(snap comm.RoomSnapshot) {
	b.publishTyped("room-snapshot", snap, "")
}

func (b *Broker) PublishRoll(ev comm.RollEvent) {
	b.publishTyped("roll-event", ev, "")
}

func (b *Broker) PublishResolved(ev comm.ResolvedEvent) {
	b.publishTyped("room-resolved", ev, "")
}

func (b *Broker) PublishLobby(up comm.LobbyUpdate) {
	b.publishTyped("lobby-update", up, "")
}

// consume commands relayed by the socket service
func (b *Broker) SubscribSocketService(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// SubscribeCommands subscribes on the default inbound topic.
func (b *Broker) SubscribeCommands() (*nats.Subscription, error) {
	return b.SubscribSocketService(topicIn)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
