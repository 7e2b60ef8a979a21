package invites

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Channel = "pong:invites"

// InviteEvent is published by the chat service when an invitation is accepted.
type InviteEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RoomCreator opens a room for two known users; the first one is the initiator.
type RoomCreator interface {
	CreateRoom(ctx context.Context, initiator, opponent string) (string, error)
}

// Subscriber turns accepted invitations into Waiting rooms.
type Subscriber struct {
	rdb   *redis.Client
	rooms RoomCreator
	log   *zap.Logger
}

func NewSubscriber(rdb *redis.Client, rooms RoomCreator, logger *zap.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, rooms: rooms, log: logger}
}

// Run blocks until ctx is cancelled or the subscription closes. ready, when not nil,
// is closed once the subscription is confirmed by Redis.
func (s *Subscriber) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := s.rdb.Subscribe(ctx, Channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	ch := sub.Channel()
	s.log.Info("invite subscriber listening", zap.String("channel", Channel))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload string) {
	var evt InviteEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		s.log.Warn("malformed invite event", zap.Error(err))
		return
	}
	roomID, err := s.rooms.CreateRoom(ctx, evt.From, evt.To)
	if err != nil {
		s.log.Warn("invite room not created", zap.String("from", evt.From), zap.String("to", evt.To), zap.Error(err))
		return
	}
	s.log.Info("invite room created", zap.String("room", roomID), zap.String("from", evt.From), zap.String("to", evt.To))
}
