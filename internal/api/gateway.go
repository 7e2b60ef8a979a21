package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pong/internal/models"
	roomManager "pong/internal/room_management"
	"pong/internal/session"
	"pong/internal/utils"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = (pongWait * 9) / 10
	maxFrameBytes = 4096
)

// GameWS authenticates the credential before upgrading, then dispatches inbound frames
// until the socket closes. Closing runs the disconnect cascade.
func (h *Handlers) GameWS(w http.ResponseWriter, r *http.Request) {
	credential, err := utils.CredentialFromRequest(r)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}
	userKey, err := h.registry.Authenticate(r.Context(), credential)
	if err != nil {
		h.log.Info("websocket authentication failed", zap.Error(err))
		utils.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := session.NewClient(conn, h.log)
	id := h.registry.Register(userKey, client)
	go client.WritePump(pingInterval)
	defer func() {
		h.registry.Disconnect(id.ConnectionID)
		client.Close()
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.WithoutCancel(r.Context())
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read", zap.String("conn", id.ConnectionID), zap.Error(err))
			}
			return
		}
		var frame models.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			h.log.Debug("malformed frame dropped", zap.String("conn", id.ConnectionID))
			continue
		}
		h.dispatch(ctx, id, frame)
	}
}

func (h *Handlers) dispatch(ctx context.Context, id models.Identity, frame models.Frame) {
	var err error
	switch frame.Type {
	case models.FrameMatchmaking:
		err = h.queue.Enqueue(ctx, id)
	case models.FrameCancelMatchmaking:
		err = h.queue.Cancel(ctx, id)
	case models.FrameJoinRoom:
		var req models.RoomReq
		if err = decode(frame.Data, &req); err == nil {
			err = h.rooms.JoinRoom(id, req.RoomName)
		}
	case models.FrameLeaveRoom:
		var req models.RoomReq
		if err = decode(frame.Data, &req); err == nil {
			err = h.rooms.LeaveRoom(id, req.RoomName)
		}
	case models.FrameMove:
		var req models.MoveReq
		if err = decode(frame.Data, &req); err == nil {
			err = h.rooms.HandleMove(id, req.IdGame, req.Player, req.Position)
		}
	default:
		h.log.Debug("unknown frame type", zap.String("type", frame.Type))
		return
	}

	if err == nil {
		return
	}
	switch {
	case errors.Is(err, roomManager.ErrRoomNotFound),
		errors.Is(err, roomManager.ErrUnauthorizedAction),
		errors.Is(err, roomManager.ErrRoomFull),
		errors.Is(err, roomManager.ErrAlreadyInRoom),
		errors.Is(err, errMalformed):
		h.log.Debug("frame dropped", zap.String("type", frame.Type), zap.String("user", id.UserKey), zap.Error(err))
	default:
		h.log.Warn("frame failed", zap.String("type", frame.Type), zap.String("user", id.UserKey), zap.Error(err))
	}
}

var errMalformed = errors.New("malformed frame data")

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errMalformed
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errMalformed
	}
	return nil
}
