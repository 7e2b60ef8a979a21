package game

import (
	"context"
	"sync"
	"time"
)

// Loop drives a tick function at a fixed rate until the tick returns false, the parent
// context is cancelled, or Stop is called.
type Loop struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// StartLoop launches the ticker goroutine. tick runs on that goroutine only.
func StartLoop(parent context.Context, interval time.Duration, tick func() bool) *Loop {
	ctx, cancel := context.WithCancel(parent)
	l := &Loop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)
		defer l.Stop()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil || !tick() {
					return
				}
			}
		}
	}()
	return l
}

// Stop cancels the loop. Safe to call repeatedly and from inside tick; it does not wait.
func (l *Loop) Stop() {
	l.once.Do(l.cancel)
}

// Done is closed once the goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
