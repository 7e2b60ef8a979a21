package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pong/internal/metrics"
	"pong/internal/models"
)

const (
	EventsChannel  = "pong:events"
	publishTimeout = 2 * time.Second
)

// lifecycle lists the event types worth publishing outside the process; per-tick
// traffic such as ball and paddle positions stays local.
var lifecycle = map[string]bool{
	models.EventRoomCreated: true,
	models.EventMatchFound:  true,
	models.EventGameStarted: true,
	models.EventGameEnded:   true,
	models.EventPlayerLeft:  true,
	models.EventRoomDeleted: true,
}

// MirroredEvent is the JSON document published on EventsChannel.
type MirroredEvent struct {
	Scope string      `json:"scope"`
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	At    time.Time   `json:"at"`
}

// RedisMirror publishes room lifecycle events to a Redis channel from a single worker
// goroutine, preserving order and never blocking the caller.
type RedisMirror struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
	queue   chan MirroredEvent
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

func NewRedisMirror(rdb *redis.Client, channel string, buffer int, logger *zap.Logger) *RedisMirror {
	m := &RedisMirror{
		rdb:     rdb,
		channel: channel,
		log:     logger,
		queue:   make(chan MirroredEvent, buffer),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

func (m *RedisMirror) Mirror(scope string, evt models.Event) {
	if !lifecycle[evt.Type] {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- MirroredEvent{Scope: scope, Type: evt.Type, Data: evt.Data, At: time.Now().UTC()}:
	default:
		metrics.DroppedFrames.WithLabelValues("redis_mirror").Inc()
		m.log.Warn("event mirror queue full, dropping", zap.String("type", evt.Type))
	}
}

func (m *RedisMirror) run() {
	defer m.wg.Done()
	for evt := range m.queue {
		payload, err := json.Marshal(evt)
		if err != nil {
			m.log.Error("encode mirrored event", zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := m.rdb.Publish(ctx, m.channel, payload).Err(); err != nil {
			m.log.Warn("publish mirrored event", zap.String("type", evt.Type), zap.Error(err))
		}
		cancel()
	}
}

// Close flushes pending events and stops the worker.
func (m *RedisMirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()
	m.wg.Wait()
}
