package session

import (
	"sync"

	"pong/internal/models"
)

// GlobalScope is the mirror scope used for events sent to every connection.
const GlobalScope = "*"

// Sender is anything that can receive an outbound event without blocking.
type Sender interface {
	Send(models.Event)
}

// Mirror receives a copy of every event the hub delivers, tagged with its scope
// (a room topic, a connection id, or GlobalScope).
type Mirror interface {
	Mirror(scope string, evt models.Event)
}

// Hub is the event channel between game logic and live connections. Connections are
// addressed individually, as members of a topic (one per room), or all at once.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Sender
	topics  map[string]map[string]struct{}
	mirror  Mirror
}

func NewHub(mirror Mirror) *Hub {
	return &Hub{
		clients: make(map[string]Sender),
		topics:  make(map[string]map[string]struct{}),
		mirror:  mirror,
	}
}

func (h *Hub) Register(connID string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connID] = s
}

// Unregister drops the connection and all of its topic memberships.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
	for topic, members := range h.topics {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) Join(topic, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[string]struct{})
		h.topics[topic] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) Leave(topic, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.topics[topic]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
}

// CloseTopic removes every member from the topic.
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics, topic)
}

func (h *Hub) Members(topic string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.topics[topic]))
	for id := range h.topics[topic] {
		out = append(out, id)
	}
	return out
}

// Broadcast delivers evt to every member of topic except the listed connections.
func (h *Hub) Broadcast(topic string, evt models.Event, except ...string) {
	h.mu.RLock()
	targets := make([]Sender, 0, len(h.topics[topic]))
	for id := range h.topics[topic] {
		if contains(except, id) {
			continue
		}
		if s, ok := h.clients[id]; ok {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Send(evt)
	}
	h.mirrorEvent(topic, evt)
}

// Narrowcast delivers evt to one connection and reports whether it was registered.
func (h *Hub) Narrowcast(connID string, evt models.Event) bool {
	h.mu.RLock()
	s, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		s.Send(evt)
	}
	h.mirrorEvent(connID, evt)
	return ok
}

func (h *Hub) BroadcastAll(evt models.Event) {
	h.mu.RLock()
	targets := make([]Sender, 0, len(h.clients))
	for _, s := range h.clients {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Send(evt)
	}
	h.mirrorEvent(GlobalScope, evt)
}

func (h *Hub) mirrorEvent(scope string, evt models.Event) {
	if h.mirror != nil {
		h.mirror.Mirror(scope, evt)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
