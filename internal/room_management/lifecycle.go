package room_management

import (
	"time"

	"go.uber.org/zap"

	"pong/internal/game"
	"pong/internal/metrics"
	"pong/internal/models"
)

func (m *Manager) startLocked(r *Room) {
	r.state = models.RoomPlaying
	r.game.IsPlaying = true
	r.game.Ball.Speed = models.BallPlayingSpeed

	metrics.ActiveRooms.WithLabelValues(string(models.RoomWaiting)).Dec()
	metrics.ActiveRooms.WithLabelValues(string(models.RoomPlaying)).Inc()

	m.events.Broadcast(r.ID, models.Event{Type: models.EventGameStarted, Data: models.RoomNamePayload{RoomName: r.ID}})
	m.events.BroadcastAll(models.Event{Type: models.EventNewGame, Data: models.RoomNamePayload{RoomName: r.ID}})

	r.loop = game.StartLoop(m.ctx, m.opts.TickInterval, func() bool { return m.tick(r) })
	m.log.Info("match started", zap.String("room", r.ID))
}

// tick runs one simulation step; false stops the loop.
func (m *Manager) tick(r *Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != models.RoomPlaying {
		return false
	}
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	m.events.Broadcast(r.ID, models.Event{Type: models.EventBallPosition, Data: models.BallPayload{Ball: r.game.Ball}})

	res := game.Step(&r.game)
	if res.Scorer == models.SlotNone {
		return true
	}
	m.events.Broadcast(r.ID, models.Event{Type: models.EventUpdateScore, Data: models.ScorePayload{Score: r.game.Score()}})
	if r.game.Decided() {
		m.endGameLocked(r)
		return false
	}
	return true
}

func (m *Manager) endGameLocked(r *Room) {
	score := r.game.Score()
	winner := models.SlotPlayer1
	if score[1] > score[0] {
		winner = models.SlotPlayer2
	}
	prev := r.finishLocked()

	m.rec.MatchFinished(r.ID, score, r.players[winner-1])
	m.events.Broadcast(r.ID, models.Event{
		Type: models.EventGameEnded,
		Data: models.GameEndedPayload{Score: score, Winner: winner},
	})
	m.removeLocked(r, prev, metrics.OutcomeFinished)
	m.log.Info("match finished",
		zap.String("room", r.ID),
		zap.Ints("score", score[:]),
		zap.String("winner", r.players[winner-1]))
}

// abandonLocked ends a Playing room because one side went away. The score is frozen
// as it was; no GameEnded is emitted.
func (m *Manager) abandonLocked(r *Room, leaver models.Slot, outcome string) {
	score := r.game.Score()
	prev := r.finishLocked()

	m.events.Broadcast(r.ID, models.Event{
		Type: models.EventPlayerLeft,
		Data: models.PlayerLeftPayload{Player: leaver, Score: score},
	})
	if m.opts.ForfeitOnAbandon {
		remaining := models.SlotPlayer1
		if leaver == models.SlotPlayer1 {
			remaining = models.SlotPlayer2
		}
		m.rec.MatchFinished(r.ID, score, r.players[remaining-1])
	}
	m.removeLocked(r, prev, outcome)
}

// removeLocked drops a Finished room from the active set. Callers hold r.mu.
func (m *Manager) removeLocked(r *Room, prev models.RoomState, outcome string) {
	m.mu.Lock()
	delete(m.rooms, r.ID)
	for _, p := range r.players {
		if p != "" && m.occupancy[p] == r.ID {
			delete(m.occupancy, p)
		}
	}
	m.mu.Unlock()

	metrics.ActiveRooms.WithLabelValues(string(prev)).Dec()
	metrics.MatchesTotal.WithLabelValues(outcome).Inc()

	m.events.CloseTopic(r.ID)
	m.events.BroadcastAll(models.Event{Type: models.EventRoomDeleted, Data: models.RoomNamePayload{RoomName: r.ID}})
}
