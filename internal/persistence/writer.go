package persistence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pong/internal/metrics"
	"pong/internal/models"
)

const writeTimeout = 5 * time.Second

// Gateway is the durable store behind the Writer.
type Gateway interface {
	Create(ctx context.Context, rec *models.MatchRecord) error
	Finish(ctx context.Context, roomName string, score [2]int, winner string, endedAt time.Time) error
}

// NopGateway accepts every write and stores nothing.
type NopGateway struct{}

func (NopGateway) Create(context.Context, *models.MatchRecord) error { return nil }

func (NopGateway) Finish(context.Context, string, [2]int, string, time.Time) error { return nil }

type jobKind int

const (
	jobCreate jobKind = iota
	jobFinish
)

type job struct {
	kind   jobKind
	rec    models.MatchRecord
	room   string
	score  [2]int
	winner string
	at     time.Time
}

// Writer applies match record writes in submission order on one goroutine. Submitting
// never blocks; failures are logged and counted, never returned to the game.
type Writer struct {
	gw   Gateway
	log  *zap.Logger
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewWriter(gw Gateway, buffer int, logger *zap.Logger) *Writer {
	w := &Writer{gw: gw, log: logger, jobs: make(chan job, buffer)}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writer) MatchCreated(rec models.MatchRecord) {
	w.submit(job{kind: jobCreate, rec: rec, room: rec.RoomName})
}

func (w *Writer) MatchFinished(roomName string, score [2]int, winner string) {
	w.submit(job{kind: jobFinish, room: roomName, score: score, winner: winner, at: time.Now().UTC()})
}

func (w *Writer) submit(j job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.log.Warn("persistence writer closed, dropping write", zap.String("room", j.room))
		return
	}
	select {
	case w.jobs <- j:
	default:
		metrics.PersistenceFailures.WithLabelValues("dropped").Inc()
		w.log.Error("persistence queue full, dropping write", zap.String("room", j.room))
	}
}

func (w *Writer) run() {
	defer w.wg.Done()
	for j := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		var err error
		op := "create"
		switch j.kind {
		case jobCreate:
			rec := j.rec
			err = w.gw.Create(ctx, &rec)
		case jobFinish:
			op = "finish"
			err = w.gw.Finish(ctx, j.room, j.score, j.winner, j.at)
		}
		cancel()
		if err != nil {
			metrics.PersistenceFailures.WithLabelValues(op).Inc()
			w.log.Error("match record write failed", zap.String("op", op), zap.String("room", j.room), zap.Error(err))
		}
	}
}

// Close drains queued writes and stops the worker.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	w.wg.Wait()
}
