package matchmaking

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pong/internal/metrics"
	"pong/internal/models"
)

// Rooms is the part of the room manager the queue needs.
type Rooms interface {
	IsOccupied(userKey string) bool
	CreateRoom(ctx context.Context, initiator, opponent string) (string, error)
}

// Queue pairs waiting players strictly first come, first served.
type Queue struct {
	mu    sync.Mutex
	store Store
	rooms Rooms
	log   *zap.Logger
}

func NewQueue(store Store, rooms Rooms, logger *zap.Logger) *Queue {
	return &Queue{store: store, rooms: rooms, log: logger}
}

// Enqueue adds the identity and, once two are waiting, hands the two oldest to the
// room manager. Already queued or seated identities are ignored.
func (q *Queue) Enqueue(ctx context.Context, id models.Identity) error {
	q.mu.Lock()
	if q.rooms.IsOccupied(id.UserKey) {
		q.mu.Unlock()
		q.log.Debug("enqueue ignored, already in a room", zap.String("user", id.UserKey))
		return nil
	}
	added, err := q.store.Push(ctx, id.UserKey)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	if !added {
		q.mu.Unlock()
		return nil
	}
	a, b, ok, err := q.store.PopPair(ctx)
	q.refreshGauge(ctx)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	if ok {
		return q.pair(ctx, a, b)
	}
	return nil
}

// Cancel withdraws the identity; absent identities are a no-op.
func (q *Queue) Cancel(ctx context.Context, id models.Identity) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed, err := q.store.Remove(ctx, id.UserKey)
	if err != nil {
		return err
	}
	if removed {
		q.refreshGauge(ctx)
		q.log.Debug("matchmaking cancelled", zap.String("user", id.UserKey))
	}
	return nil
}

func (q *Queue) Len(ctx context.Context) int64 {
	n, err := q.store.Len(ctx)
	if err != nil {
		q.log.Warn("queue length", zap.Error(err))
		return 0
	}
	return n
}

func (q *Queue) pair(ctx context.Context, a, b string) error {
	roomID, err := q.rooms.CreateRoom(ctx, a, b)
	if err == nil {
		q.log.Info("players paired", zap.String("room", roomID), zap.String("player1", a), zap.String("player2", b))
		return nil
	}

	var back []string
	for _, k := range []string{a, b} {
		if !q.rooms.IsOccupied(k) {
			back = append(back, k)
		}
	}
	q.mu.Lock()
	requeueErr := q.store.PushFront(ctx, back...)
	q.refreshGauge(ctx)
	q.mu.Unlock()
	if requeueErr != nil {
		q.log.Error("requeue after failed pairing", zap.Strings("users", back), zap.Error(requeueErr))
	}
	return fmt.Errorf("pair %s with %s: %w", a, b, err)
}

func (q *Queue) refreshGauge(ctx context.Context) {
	if n, err := q.store.Len(ctx); err == nil {
		metrics.QueueWaiting.Set(float64(n))
	}
}
