package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pong/internal/matchmaking"
	"pong/internal/models"
	"pong/internal/registry"
	roomManager "pong/internal/room_management"
	"pong/internal/session"
	"pong/internal/utils"
)

var testSecret = []byte("test-secret")

type nopRecorder struct{}

func (nopRecorder) MatchCreated(models.MatchRecord)      {}
func (nopRecorder) MatchFinished(string, [2]int, string) {}

type fakeHistory struct {
	recs []models.MatchRecord
	err  error
	last string
}

func (f *fakeHistory) ListByPlayer(_ context.Context, user string, limit int) ([]models.MatchRecord, error) {
	f.last = user
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.recs) {
		return f.recs[:limit], nil
	}
	return f.recs, nil
}

type stack struct {
	h     *Handlers
	rooms *roomManager.Manager
	reg   *registry.Registry
	mux   *chi.Mux
}

func newStack(t *testing.T, history HistoryStore) *stack {
	t.Helper()
	hub := session.NewHub(nil)
	reg := registry.New(registry.JWTResolver{Secret: testSecret}, hub, zap.NewNop())
	rooms := roomManager.NewManager(hub, reg, nopRecorder{}, roomManager.Options{TickInterval: time.Hour}, zap.NewNop())
	t.Cleanup(func() { rooms.Shutdown(context.Background()) })
	queue := matchmaking.NewQueue(matchmaking.NewMemoryStore(), rooms, zap.NewNop())
	h := NewHandlers(reg, queue, rooms, history, []string{"*"}, zap.NewNop())

	mux := chi.NewRouter()
	mux.Get("/ws", h.GameWS)
	mux.Get("/api/v1/game/rooms", h.ListRooms)
	mux.Get("/api/v1/game/rooms/{roomName}/player", h.RoomPlayer)
	mux.Post("/api/v1/game/rooms/invite", h.Invite)
	mux.Get("/api/v1/game/players", h.Players)
	mux.Get("/api/v1/game/history/{userKey}", h.History)
	return &stack{h: h, rooms: rooms, reg: reg, mux: mux}
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := utils.GenerateToken(user, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *stack) do(t *testing.T, method, path, user string, body []byte) (*httptest.ResponseRecorder, models.Resp) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, user))
	}
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	var resp models.Resp
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	return rr, resp
}

func TestRoomPlayerEndpoint(t *testing.T) {
	s := newStack(t, nil)
	roomID, err := s.rooms.CreateRoom(context.Background(), "alice", "bob")
	require.NoError(t, err)

	tests := []struct {
		name   string
		user   string
		room   string
		status int
		want   float64
	}{
		{name: "player one", user: "alice", room: roomID, status: http.StatusOK, want: 1},
		{name: "player two", user: "bob", room: roomID, status: http.StatusOK, want: 2},
		{name: "outsider", user: "carol", room: roomID, status: http.StatusOK, want: 3},
		{name: "missing room", user: "alice", room: "nope", status: http.StatusOK, want: 0},
		{name: "no credential", room: roomID, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, resp := s.do(t, http.MethodGet, "/api/v1/game/rooms/"+tt.room+"/player", tt.user, nil)
			assert.Equal(t, tt.status, rr.Code)
			if tt.status != http.StatusOK {
				assert.False(t, resp.OK)
				return
			}
			info := resp.Info.(map[string]interface{})
			assert.Equal(t, tt.want, info["player"])
		})
	}
}

func TestRoomPlayerRejectsForgedToken(t *testing.T) {
	s := newStack(t, nil)
	forged, err := utils.GenerateToken("alice", []byte("other"), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/game/rooms/x/player", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListRoomsAndPlayers(t *testing.T) {
	s := newStack(t, nil)
	_, err := s.rooms.CreateRoom(context.Background(), "alice", "bob")
	require.NoError(t, err)

	rr, resp := s.do(t, http.MethodGet, "/api/v1/game/rooms", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.OK)
	assert.Len(t, resp.Info.([]interface{}), 1)

	rr, resp = s.do(t, http.MethodGet, "/api/v1/game/players", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	info := resp.Info.(map[string]interface{})
	assert.Equal(t, float64(0), info["connected"])
	assert.Equal(t, float64(1), info["rooms"])
}

func TestInviteEndpoint(t *testing.T) {
	s := newStack(t, nil)

	rr, resp := s.do(t, http.MethodPost, "/api/v1/game/rooms/invite", "alice", []byte(`{"opponent":"bob"}`))
	assert.Equal(t, http.StatusCreated, rr.Code)
	roomName := resp.Info.(map[string]interface{})["roomName"].(string)
	assert.Equal(t, models.SlotPlayer1, s.rooms.SlotFor("alice", roomName))

	rr, _ = s.do(t, http.MethodPost, "/api/v1/game/rooms/invite", "carol", []byte(`{"opponent":"bob"}`))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/api/v1/game/rooms/invite", "carol", []byte(`{"opponent":"carol"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/api/v1/game/rooms/invite", "carol", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = s.do(t, http.MethodPost, "/api/v1/game/rooms/invite", "", []byte(`{"opponent":"bob"}`))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	store := &fakeHistory{recs: []models.MatchRecord{{RoomName: "r1"}, {RoomName: "r2"}}}
	s := newStack(t, store)

	rr, resp := s.do(t, http.MethodGet, "/api/v1/game/history/alice?limit=1", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, resp.Info.([]interface{}), 1)
	assert.Equal(t, "alice", store.last)

	rr, _ = s.do(t, http.MethodGet, "/api/v1/game/history/alice?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	store.err = errors.New("db down")
	rr, _ = s.do(t, http.MethodGet, "/api/v1/game/history/alice", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	noDB := newStack(t, nil)
	rr, _ = noDB.do(t, http.MethodGet, "/api/v1/game/history/alice", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestGameWSRejectsUnauthenticated(t *testing.T) {
	s := newStack(t, nil)

	for _, path := range []string{"/ws", "/ws?token=garbage"} {
		rr := httptest.NewRecorder()
		s.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
	assert.Equal(t, 0, s.reg.Count())
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, server *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token(t, user)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": typ, "data": data}))
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) wireEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var evt wireEvent
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if evt.Type == typ {
			return evt
		}
	}
}

func TestWebSocketMatchFlow(t *testing.T) {
	s := newStack(t, nil)
	server := httptest.NewServer(s.mux)
	defer server.Close()

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")

	send(t, alice, models.FrameMatchmaking, nil)
	require.Eventually(t, func() bool { return s.h.queue.Len(context.Background()) == 1 }, 2*time.Second, 10*time.Millisecond)
	send(t, bob, models.FrameMatchmaking, nil)

	var found models.RoomNamePayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, models.EventMatchFound).Data, &found))
	readUntil(t, bob, models.EventMatchFound)
	assert.Equal(t, models.SlotPlayer1, s.rooms.SlotFor("alice", found.RoomName))

	send(t, alice, models.FrameJoinRoom, models.RoomReq{RoomName: found.RoomName})
	send(t, bob, models.FrameJoinRoom, models.RoomReq{RoomName: found.RoomName})
	readUntil(t, alice, models.EventGameStarted)
	readUntil(t, bob, models.EventGameStarted)

	send(t, bob, models.FrameMove, models.MoveReq{IdGame: found.RoomName, Player: models.SlotPlayer2, Position: 0.4})
	var pos models.PositionPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, models.EventUpdatePosition).Data, &pos))
	assert.Equal(t, models.PositionPayload{PlayerRole: models.SlotPlayer2, Position: 0.4}, pos)

	require.NoError(t, alice.Close())

	var left models.PlayerLeftPayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, models.EventPlayerLeft).Data, &left))
	assert.Equal(t, models.SlotPlayer1, left.Player)
	readUntil(t, bob, models.EventRoomDeleted)
	assert.Equal(t, models.SlotNone, s.rooms.SlotFor("bob", found.RoomName))
}
