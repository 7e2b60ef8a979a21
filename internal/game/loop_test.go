package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitDone(t *testing.T, l *Loop) {
	t.Helper()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
}

func TestLoopStopsWhenTickReturnsFalse(t *testing.T) {
	var ticks int32
	l := StartLoop(context.Background(), time.Millisecond, func() bool {
		return atomic.AddInt32(&ticks, 1) < 3
	})

	waitDone(t, l)
	assert.Equal(t, int32(3), atomic.LoadInt32(&ticks))
}

func TestLoopStopIsIdempotent(t *testing.T) {
	l := StartLoop(context.Background(), time.Millisecond, func() bool { return true })
	l.Stop()
	l.Stop()
	waitDone(t, l)
	l.Stop()
}

func TestLoopStopFromInsideTick(t *testing.T) {
	var l *Loop
	ready := make(chan struct{})
	var ticks int32
	l = StartLoop(context.Background(), time.Millisecond, func() bool {
		<-ready
		atomic.AddInt32(&ticks, 1)
		l.Stop()
		return true
	})
	close(ready)

	waitDone(t, l)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ticks))
}

func TestLoopFollowsParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := StartLoop(ctx, time.Millisecond, func() bool { return true })
	cancel()
	waitDone(t, l)
}
