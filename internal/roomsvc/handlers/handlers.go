package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gebeta/wager-services/internal/roomsvc/engine"
	"github.com/gebeta/wager-services/internal/roomsvc/service"
	"github.com/go-chi/jwtauth"
)

type Handler struct {
	tokenAuth   *jwtauth.JWTAuth
	engine      *engine.Engine
	roomService *service.RoomService
}

func NewHandler(e *engine.Engine, roomService *service.RoomService) *Handler {
	return &Handler{engine: e, roomService: roomService}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "room service is running at port " + os.Getenv("ROOM_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}
