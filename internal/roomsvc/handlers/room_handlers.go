package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gebeta/wager-services/internal/roomsvc/engine"
	"github.com/gebeta/wager-services/internal/roomsvc/store"
	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"
)

// statusFor maps the engine's error taxonomy onto HTTP codes. Lost races
// surface as 409 conflicts so clients know a retry or a snapshot refresh
// is the answer, not an apology screen.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrSeatTaken),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, engine.ErrDuplicateSeat):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrRoomNotOpen),
		errors.Is(err, engine.ErrRoomFinished),
		errors.Is(err, engine.ErrWrongGame),
		errors.Is(err, engine.ErrCapacityExceeded),
		errors.Is(err, engine.ErrInvalidPosition),
		errors.Is(err, engine.ErrNotParticipant),
		errors.Is(err, engine.ErrNotYourTurn),
		errors.Is(err, engine.ErrAlreadyRolled),
		errors.Is(err, engine.ErrNotFinalizable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.CreateResponse(w, Response{
		Code:  statusFor(err),
		Error: err.Error(),
	})
}

func roomIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
}

func (h *Handler) LobbyHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.roomService.Lobby(r.Context())
	if err != nil {
		log.Errorf("lobby: %s", err)
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Code: 200, Data: rooms})
}

func (h *Handler) RoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.fail(w, engine.ErrRoomNotFound)
		return
	}

	room, err := h.roomService.GetRoomByID(r.Context(), roomID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if room == nil {
		h.fail(w, engine.ErrRoomNotFound)
		return
	}

	entries, err := h.roomService.GetRoomEntries(r.Context(), roomID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Code: 200, Data: engine.BuildSnapshot(room, entries)})
}

func (h *Handler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.fail(w, engine.ErrRoomNotFound)
		return
	}

	var req struct {
		UserID    int64 `json:"user_id"`
		Positions []int `json:"positions,omitempty"`
		Count     int   `json:"count,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "bad request body"})
		return
	}

	result, err := h.engine.Join(r.Context(), roomID, req.UserID, req.Positions, req.Count)
	if err != nil {
		log.Errorf("join room %d user %d: %s", roomID, req.UserID, err)
		h.fail(w, err)
		return
	}

	positions := make([]int, len(result.Entries))
	for i, en := range result.Entries {
		positions[i] = en.Position
	}
	h.CreateResponse(w, Response{Code: 200, Data: map[string]any{
		"positions": positions,
		"state":     result.Room.State,
		"round":     result.Room.CurrentRound,
	}})
}

func (h *Handler) RollHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.fail(w, engine.ErrRoomNotFound)
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "bad request body"})
		return
	}

	res, err := h.engine.SubmitRoll(r.Context(), roomID, req.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: map[string]any{
		"dice":      res.Dice,
		"round":     res.Round,
		"resolved":  res.Resolved,
		"push":      res.Outcome.Push,
		"winner":    res.Outcome.WinnerUserID,
		"transfer":  res.Outcome.Transfer,
		"game_over": res.Outcome.GameOver,
		"prize":     res.Outcome.Prize,
	}})
}

func (h *Handler) ForfeitHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.fail(w, engine.ErrRoomNotFound)
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "bad request body"})
		return
	}

	result, err := h.engine.Forfeit(r.Context(), roomID, req.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Code: 200, Data: result})
}

func (h *Handler) FinalizeHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.fail(w, engine.ErrRoomNotFound)
		return
	}

	var req struct {
		PositionOverride int `json:"position_override,omitempty"`
	}
	// body optional for plain finalize requests
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.engine.Finalize(r.Context(), roomID, req.PositionOverride)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Code: 200, Data: result})
}

func (h *Handler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomIDParam(r)
	if err != nil {
		h.fail(w, engine.ErrRoomNotFound)
		return
	}

	room, err := h.engine.Reset(r.Context(), roomID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Code: 200, Data: room})
}
