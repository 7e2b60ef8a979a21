package room_management

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pong/internal/game"
	"pong/internal/metrics"
	"pong/internal/models"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrUnauthorizedAction = errors.New("identity does not hold that seat")
	ErrAlreadyInRoom      = errors.New("identity already occupies a room")
	ErrSamePlayer         = errors.New("cannot pair an identity with itself")
	ErrRoomFull           = errors.New("room is full")
)

// Publisher delivers events to connections; implemented by session.Hub.
type Publisher interface {
	Broadcast(topic string, evt models.Event, except ...string)
	Narrowcast(connID string, evt models.Event) bool
	BroadcastAll(evt models.Event)
	Join(topic, connID string)
	Leave(topic, connID string)
	CloseTopic(topic string)
}

// Directory finds the live connection of a user; implemented by registry.Registry.
type Directory interface {
	ConnectionFor(userKey string) (string, bool)
}

// Recorder receives match record writes; implemented by persistence.Writer.
// Both calls must return without waiting on storage.
type Recorder interface {
	MatchCreated(rec models.MatchRecord)
	MatchFinished(roomName string, score [2]int, winner string)
}

type Options struct {
	TickInterval time.Duration
	// ForfeitOnAbandon records the remaining player as winner when a Playing
	// participant leaves or drops. Otherwise the record keeps no winner.
	ForfeitOnAbandon bool
}

// Manager owns every active room. Lock order is room then manager: mu is never held
// while acquiring a room lock.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	events Publisher
	dir    Directory
	rec    Recorder
	log    *zap.Logger
	opts   Options
	now    func() time.Time

	mu        sync.RWMutex
	rooms     map[string]*Room
	occupancy map[string]string
}

func NewManager(events Publisher, dir Directory, rec Recorder, opts Options, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / 60
	}
	return &Manager{
		ctx:       ctx,
		cancel:    cancel,
		events:    events,
		dir:       dir,
		rec:       rec,
		log:       logger,
		opts:      opts,
		now:       time.Now,
		rooms:     make(map[string]*Room),
		occupancy: make(map[string]string),
	}
}

// CreateRoom seats two users in a new Waiting room. The first user is the initiator.
func (m *Manager) CreateRoom(ctx context.Context, initiator, opponent string) (string, error) {
	if initiator == "" || opponent == "" {
		return "", ErrUnauthorizedAction
	}
	if initiator == opponent {
		return "", ErrSamePlayer
	}

	m.mu.Lock()
	if _, busy := m.occupancy[initiator]; busy {
		m.mu.Unlock()
		return "", ErrAlreadyInRoom
	}
	if _, busy := m.occupancy[opponent]; busy {
		m.mu.Unlock()
		return "", ErrAlreadyInRoom
	}
	room := newRoom(uuid.New().String(), initiator, opponent, m.now())
	m.rooms[room.ID] = room
	m.occupancy[initiator] = room.ID
	m.occupancy[opponent] = room.ID
	m.mu.Unlock()

	metrics.ActiveRooms.WithLabelValues(string(models.RoomWaiting)).Inc()
	m.rec.MatchCreated(models.MatchRecord{
		RoomName:  room.ID,
		Player1:   initiator,
		Player2:   opponent,
		Initiator: initiator,
		Winner:    models.NoWinner,
	})

	m.events.BroadcastAll(models.Event{Type: models.EventRoomCreated, Data: models.RoomCreatedPayload{Name: room.ID}})
	found := models.Event{Type: models.EventMatchFound, Data: models.RoomNamePayload{RoomName: room.ID}}
	for _, user := range []string{initiator, opponent} {
		if connID, ok := m.dir.ConnectionFor(user); ok {
			m.events.Narrowcast(connID, found)
		}
	}

	m.log.Info("room created", zap.String("room", room.ID), zap.String("player1", initiator), zap.String("player2", opponent))
	return room.ID, nil
}

// JoinRoom attaches the connection to its seat, claiming a free seat when the user was
// not pre-assigned. The match starts once both seats have a joined connection.
func (m *Manager) JoinRoom(id models.Identity, roomID string) error {
	r := m.get(roomID)
	if r == nil {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == models.RoomFinished {
		return ErrRoomNotFound
	}

	slot := r.slotOf(id.UserKey)
	if slot == models.SlotNone {
		if r.state != models.RoomWaiting {
			return ErrRoomFull
		}
		free := r.freeSlot()
		if free == models.SlotNone {
			return ErrRoomFull
		}
		if !m.claim(id.UserKey, r.ID) {
			return ErrAlreadyInRoom
		}
		r.players[free-1] = id.UserKey
		slot = free
	}

	r.conns[slot-1] = id.ConnectionID
	m.events.Join(r.ID, id.ConnectionID)

	if r.state == models.RoomWaiting && r.bothJoined() {
		m.startLocked(r)
	}
	return nil
}

// LeaveRoom ends the room on behalf of one of its players.
func (m *Manager) LeaveRoom(id models.Identity, roomID string) error {
	r := m.get(roomID)
	if r == nil {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == models.RoomFinished {
		return ErrRoomNotFound
	}
	slot := r.slotOf(id.UserKey)
	if slot == models.SlotNone {
		return ErrUnauthorizedAction
	}

	switch r.state {
	case models.RoomWaiting:
		m.events.Broadcast(r.ID, models.Event{
			Type: models.EventPlayerLeft,
			Data: models.PlayerLeftPayload{Player: slot, Score: r.game.Score()},
		})
		m.release(id.UserKey, r.ID)
		r.players[slot-1] = ""
		r.conns[slot-1] = ""
		prev := r.finishLocked()
		m.removeLocked(r, prev, metrics.OutcomeLeft)
	case models.RoomPlaying:
		m.abandonLocked(r, slot, metrics.OutcomeLeft)
	}
	m.log.Info("player left room", zap.String("room", r.ID), zap.String("user", id.UserKey))
	return nil
}

// HandleDisconnect reacts to the loss of one connection. Only the connection that
// joined the seat counts: losing it abandons a Playing room, and a Waiting room only
// forgets it. Other connections of the same user are ignored.
func (m *Manager) HandleDisconnect(id models.Identity) {
	m.mu.RLock()
	roomID, ok := m.occupancy[id.UserKey]
	m.mu.RUnlock()
	if !ok {
		return
	}
	r := m.get(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	slot := r.slotOf(id.UserKey)
	if slot == models.SlotNone || r.conns[slot-1] != id.ConnectionID {
		return
	}
	switch r.state {
	case models.RoomPlaying:
		m.abandonLocked(r, slot, metrics.OutcomeAbandoned)
		m.log.Info("match abandoned", zap.String("room", r.ID), zap.String("user", id.UserKey))
	case models.RoomWaiting:
		r.conns[slot-1] = ""
		m.events.Leave(r.ID, id.ConnectionID)
	}
}

// HandleMove stores a paddle position for the caller's own seat and relays it.
func (m *Manager) HandleMove(id models.Identity, roomID string, slot models.Slot, position float64) error {
	r := m.get(roomID)
	if r == nil {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == models.RoomFinished {
		return ErrRoomNotFound
	}
	if slot != models.SlotPlayer1 && slot != models.SlotPlayer2 {
		return ErrUnauthorizedAction
	}
	if r.players[slot-1] != id.UserKey {
		return ErrUnauthorizedAction
	}

	pos := game.ClampPaddle(position)
	if slot == models.SlotPlayer1 {
		r.game.Player1Position = pos
	} else {
		r.game.Player2Position = pos
	}
	m.events.Broadcast(r.ID, models.Event{
		Type: models.EventUpdatePosition,
		Data: models.PositionPayload{PlayerRole: slot, Position: pos},
	}, id.ConnectionID)
	return nil
}

// ListRooms returns a snapshot of every active room, oldest first.
func (m *Manager) ListRooms() []models.RoomInfo {
	out := make([]models.RoomInfo, 0)
	for _, r := range m.snapshot() {
		r.mu.Lock()
		if r.state != models.RoomFinished {
			out = append(out, r.infoLocked())
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SlotFor answers 1 or 2 for a seated user, 3 for anyone else looking at an active
// room, and 0 when the room does not exist.
func (m *Manager) SlotFor(userKey, roomID string) models.Slot {
	r := m.get(roomID)
	if r == nil {
		return models.SlotNone
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == models.RoomFinished {
		return models.SlotNone
	}
	if slot := r.slotOf(userKey); slot != models.SlotNone {
		return slot
	}
	return models.SlotSpectator
}

func (m *Manager) IsOccupied(userKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.occupancy[userKey]
	return ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// ExpireWaiting tears down rooms that have been Waiting longer than ttl.
func (m *Manager) ExpireWaiting(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	expired := 0
	for _, r := range m.snapshot() {
		r.mu.Lock()
		if r.state == models.RoomWaiting && r.CreatedAt.Before(cutoff) {
			prev := r.finishLocked()
			m.removeLocked(r, prev, metrics.OutcomeExpired)
			expired++
			m.log.Info("waiting room expired", zap.String("room", r.ID))
		}
		r.mu.Unlock()
	}
	return expired
}

// Shutdown stops every tick loop and waits for them to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	var loops []*game.Loop
	for _, r := range m.snapshot() {
		r.mu.Lock()
		if r.loop != nil {
			loops = append(loops, r.loop)
		}
		r.mu.Unlock()
	}
	for _, l := range loops {
		select {
		case <-l.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) get(roomID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

func (m *Manager) snapshot() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

func (m *Manager) claim(userKey, roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.occupancy[userKey]; busy {
		return false
	}
	m.occupancy[userKey] = roomID
	return true
}

func (m *Manager) release(userKey, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.occupancy[userKey] == roomID {
		delete(m.occupancy, userKey)
	}
}
