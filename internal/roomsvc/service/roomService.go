package service

import (
	"context"

	"github.com/gebeta/wager-services/internal/comm"
	"github.com/gebeta/wager-services/internal/roomsvc/models"
	"github.com/gebeta/wager-services/internal/roomsvc/store"
)

type RoomService struct {
	roomStore  *store.RoomStore
	entryStore *store.EntryStore
}

func NewRoomService(roomStore *store.RoomStore, entryStore *store.EntryStore) *RoomService {
	return &RoomService{roomStore: roomStore, entryStore: entryStore}
}

func (s *RoomService) GetRoomByID(ctx context.Context, roomID int64) (*models.Room, error) {
	return s.roomStore.GetRoomByID(ctx, roomID)
}

func (s *RoomService) GetRoomEntries(ctx context.Context, roomID int64) ([]*models.Entry, error) {
	return s.entryStore.ListByRoom(ctx, roomID)
}

// Lobby renders the discovery view: every open or locked room with its
// live occupancy.
func (s *RoomService) Lobby(ctx context.Context) ([]comm.LobbyRoom, error) {
	occ, err := s.roomStore.ListLobby(ctx)
	if err != nil {
		return nil, err
	}

	rooms := make([]comm.LobbyRoom, 0, len(occ))
	for _, o := range occ {
		rooms = append(rooms, comm.LobbyRoom{
			RoomId:   o.Room.ID,
			GameType: o.Room.GameType,
			State:    o.Room.State,
			Capacity: o.Room.Capacity,
			EntryFee: o.Room.EntryFee,
			Occupied: o.Occupied,
		})
	}
	return rooms, nil
}

// ActiveRoomForUser finds the unfinished room a user currently occupies,
// if any, for client rehydration after a reconnect.
func (s *RoomService) ActiveRoomForUser(ctx context.Context, userID int64) (*models.Room, *models.Entry, error) {
	entry, err := s.entryStore.GetActiveEntryForUser(ctx, userID)
	if err != nil || entry == nil {
		return nil, nil, err
	}
	room, err := s.roomStore.GetRoomByID(ctx, entry.RoomID)
	if err != nil {
		return nil, nil, err
	}
	return room, entry, nil
}
