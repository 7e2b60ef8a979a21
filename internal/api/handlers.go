package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pong/internal/matchmaking"
	"pong/internal/models"
	"pong/internal/registry"
	roomManager "pong/internal/room_management"
	"pong/internal/utils"
)

const defaultHistoryLimit = 20

// HistoryStore reads persisted match records.
type HistoryStore interface {
	ListByPlayer(ctx context.Context, userKey string, limit int) ([]models.MatchRecord, error)
}

type Handlers struct {
	log      *zap.Logger
	registry *registry.Registry
	queue    *matchmaking.Queue
	rooms    *roomManager.Manager
	history  HistoryStore
	upgrader websocket.Upgrader
	origins  map[string]bool
}

// NewHandlers wires the HTTP and WebSocket surface. history may be nil when no
// database is available.
func NewHandlers(reg *registry.Registry, queue *matchmaking.Queue, rooms *roomManager.Manager, history HistoryStore, allowedOrigins []string, logger *zap.Logger) *Handlers {
	h := &Handlers{
		log:      logger,
		registry: reg,
		queue:    queue,
		rooms:    rooms,
		history:  history,
		origins:  make(map[string]bool),
	}
	for _, o := range allowedOrigins {
		h.origins[o] = true
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	reg.OnDisconnect(h.disconnectCascade)
	return h
}

// disconnectCascade withdraws a vanished user from the queue when no newer connection
// remains, and lets the room decide whether the closed connection held the seat.
func (h *Handlers) disconnectCascade(id models.Identity, active bool) {
	if active {
		if err := h.queue.Cancel(context.Background(), id); err != nil {
			h.log.Warn("cancel matchmaking on disconnect", zap.String("user", id.UserKey), zap.Error(err))
		}
	}
	h.rooms.HandleDisconnect(id)
}

func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || h.origins["*"] || h.origins[origin]
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) ListRooms(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: h.rooms.ListRooms()})
}

func (h *Handlers) Players(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: models.PlayersResp{
		Connected: h.registry.Count(),
		Waiting:   h.queue.Len(r.Context()),
		Rooms:     h.rooms.Count(),
	}})
}

// RoomPlayer tells the caller which seat they hold in a room: 1, 2, 3 for an outsider,
// 0 when the room does not exist.
func (h *Handlers) RoomPlayer(w http.ResponseWriter, r *http.Request) {
	userKey, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	roomName := chi.URLParam(r, "roomName")
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: models.SlotResp{
		RoomName: roomName,
		Player:   h.rooms.SlotFor(userKey, roomName),
	}})
}

// Invite opens a room between the caller and a named opponent.
func (h *Handlers) Invite(w http.ResponseWriter, r *http.Request) {
	userKey, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req models.InviteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Opponent == "" {
		utils.WriteError(w, http.StatusBadRequest, "opponent required")
		return
	}

	roomID, err := h.rooms.CreateRoom(r.Context(), userKey, req.Opponent)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusCreated, models.Resp{OK: true, Info: models.InviteResp{RoomName: roomID}})
	case errors.Is(err, roomManager.ErrSamePlayer):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, roomManager.ErrAlreadyInRoom):
		utils.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("invite room", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "could not create room")
	}
}

// History lists the most recent persisted matches of a user.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "match history unavailable")
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			utils.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	recs, err := h.history.ListByPlayer(ctx, chi.URLParam(r, "userKey"), limit)
	if err != nil {
		h.log.Error("list match history", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Resp{OK: true, Info: recs})
}

func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	credential, err := utils.CredentialFromRequest(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	userKey, err := h.registry.Authenticate(r.Context(), credential)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, registry.ErrAuthentication.Error())
		return "", false
	}
	return userKey, true
}
