package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Expirer removes rooms that stayed Waiting longer than ttl and reports how many.
type Expirer interface {
	ExpireWaiting(ttl time.Duration) int
}

// WaitingRoomReaper periodically clears rooms whose players never both showed up.
type WaitingRoomReaper struct {
	rooms    Expirer
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	log      *zap.Logger
}

func NewWaitingRoomReaper(rooms Expirer, ttl time.Duration, schedule string, logger *zap.Logger) *WaitingRoomReaper {
	return &WaitingRoomReaper{
		rooms:    rooms,
		ttl:      ttl,
		schedule: schedule,
		cron:     cron.New(),
		log:      logger,
	}
}

func (w *WaitingRoomReaper) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, func() { w.Sweep() }); err != nil {
		return fmt.Errorf("failed to schedule waiting room reaper: %w", err)
	}
	w.cron.Start()
	w.log.Info("waiting room reaper started", zap.String("schedule", w.schedule), zap.Duration("ttl", w.ttl))
	return nil
}

// Sweep runs one expiry pass.
func (w *WaitingRoomReaper) Sweep() int {
	n := w.rooms.ExpireWaiting(w.ttl)
	if n > 0 {
		w.log.Info("expired waiting rooms", zap.Int("count", n))
	}
	return n
}

// Stop waits for a running sweep to finish.
func (w *WaitingRoomReaper) Stop() {
	<-w.cron.Stop().Done()
}
