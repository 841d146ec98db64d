package engine

import (
	"encoding/json"

	"github.com/gebeta/wager-services/internal/comm"
	"github.com/gebeta/wager-services/internal/roomsvc/models"
)

// BuildSnapshot renders the authoritative room view for broadcast.
// The draw server seed never leaves here before the room is finished;
// only its commitment hash would be safe, and clients get the seed via
// the resolved event instead.
func BuildSnapshot(room *models.Room, entries []*models.Entry) comm.RoomSnapshot {
	snap := comm.RoomSnapshot{
		RoomId:   room.ID,
		GameType: room.GameType,
		State:    room.State,
		Capacity: room.Capacity,
		EntryFee: room.EntryFee,
		Round:    room.CurrentRound,
		LocksAt:  room.LocksAt,
	}

	for _, en := range entries {
		snap.Seats = append(snap.Seats, comm.SeatInfo{
			EntryId:  en.ID,
			UserId:   en.UserID,
			Position: en.Position,
			Round:    en.Round,
			IsBot:    en.IsBot,
		})
	}

	if d := room.Meta.Duel; d != nil {
		snap.Balances = d.Balances
		snap.TurnUserId = d.TurnUserID
		snap.TurnDeadline = d.TurnDeadline
		if len(d.History) > 0 {
			if raw, err := json.Marshal(d.History); err == nil {
				snap.History = raw
			}
		}
	}

	if room.IsFinished() {
		if room.PrizeAmount != nil {
			snap.Prize = *room.PrizeAmount
		}
		if room.WinningEntryID != nil {
			for _, en := range entries {
				if en.ID == *room.WinningEntryID {
					snap.WinnerUserId = en.UserID
				}
			}
		}
	}

	return snap
}
