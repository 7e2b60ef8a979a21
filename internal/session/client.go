package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pong/internal/metrics"
	"pong/internal/models"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
)

// Client owns the write side of one WebSocket. Send never blocks: frames are queued
// on a bounded buffer drained by WritePump, and dropped when the buffer is full.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	log    *zap.Logger
	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{conn: conn, send: make(chan []byte, sendBuffer), log: logger}
}

func (c *Client) Send(evt models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		c.log.Error("encode outbound event", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
		metrics.DroppedFrames.WithLabelValues("client").Inc()
		c.log.Warn("client send buffer full, dropping frame", zap.String("type", evt.Type))
	}
}

// WritePump drains queued frames to the socket and keeps it alive with pings.
// It returns when Close is called or a write fails.
func (c *Client) WritePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops WritePump after it flushes what is already queued.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
