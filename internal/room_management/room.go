package room_management

import (
	"sync"
	"time"

	"pong/internal/game"
	"pong/internal/models"
)

// Room is one match. Every field below mu is guarded by it; ticks and handlers for the
// same room serialize on that lock.
type Room struct {
	ID        string
	Initiator string
	CreatedAt time.Time

	mu      sync.Mutex
	players [2]string
	conns   [2]string
	state   models.RoomState
	game    models.GameState
	loop    *game.Loop
}

func newRoom(id, player1, player2 string, now time.Time) *Room {
	return &Room{
		ID:        id,
		Initiator: player1,
		CreatedAt: now,
		players:   [2]string{player1, player2},
		state:     models.RoomWaiting,
		game:      models.NewGameState(),
	}
}

func (r *Room) slotOf(userKey string) models.Slot {
	switch {
	case userKey == "":
		return models.SlotNone
	case r.players[0] == userKey:
		return models.SlotPlayer1
	case r.players[1] == userKey:
		return models.SlotPlayer2
	}
	return models.SlotNone
}

func (r *Room) freeSlot() models.Slot {
	switch {
	case r.players[0] == "":
		return models.SlotPlayer1
	case r.players[1] == "":
		return models.SlotPlayer2
	}
	return models.SlotNone
}

func (r *Room) bothJoined() bool {
	return r.conns[0] != "" && r.conns[1] != ""
}

// finishLocked moves the room to Finished and stops its loop. It returns the state the
// room was in so callers can account for it.
func (r *Room) finishLocked() models.RoomState {
	prev := r.state
	r.state = models.RoomFinished
	r.game.IsPlaying = false
	r.game.Ball.Speed = 0
	if r.loop != nil {
		r.loop.Stop()
	}
	return prev
}

func (r *Room) infoLocked() models.RoomInfo {
	return models.RoomInfo{
		Name:      r.ID,
		Player1:   r.players[0],
		Player2:   r.players[1],
		State:     r.state,
		Score:     r.game.Score(),
		CreatedAt: r.CreatedAt,
	}
}
