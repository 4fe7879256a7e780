package chat

import (
	"sync"
)

// Sink receives outbound events. Live websocket connections implement it;
// tests substitute recorders.
type Sink interface {
	Deliver(ev Event)
}

// Hub owns broadcast-group membership: one group per session plus a global
// group of operator connections. Membership mutations and publishes are
// guarded by a single RWMutex; delivery to a dead connection is the sink's
// problem and must be a silent no-op.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[Sink]struct{}
	operators map[Sink]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:     make(map[string]map[Sink]struct{}),
		operators: make(map[Sink]struct{}),
	}
}

// JoinRoom subscribes a connection to a session's group.
func (h *Hub) JoinRoom(sessionKey string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[sessionKey]; !ok {
		h.rooms[sessionKey] = make(map[Sink]struct{})
	}
	h.rooms[sessionKey][s] = struct{}{}
}

// LeaveRoom unsubscribes a connection from a session's group.
func (h *Hub) LeaveRoom(sessionKey string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[sessionKey]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, sessionKey)
		}
	}
}

// AddOperator subscribes a connection to the global operator group.
func (h *Hub) AddOperator(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.operators[s] = struct{}{}
}

// Remove unsubscribes a connection from every group.
func (h *Hub) Remove(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.operators, s)
	for key, members := range h.rooms {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
}

// ToRoom delivers an event to every connection subscribed to a session's
// group. Unknown session keys are a no-op.
func (h *Hub) ToRoom(sessionKey string, ev Event) {
	for _, s := range h.snapshotRoom(sessionKey) {
		s.Deliver(ev)
	}
}

// ToOperators delivers an event to every operator connection.
func (h *Hub) ToOperators(ev Event) {
	h.mu.RLock()
	sinks := make([]Sink, 0, len(h.operators))
	for s := range h.operators {
		sinks = append(sinks, s)
	}
	h.mu.RUnlock()

	for _, s := range sinks {
		s.Deliver(ev)
	}
}

// snapshotRoom copies a room's membership so delivery happens outside the
// lock; a slow write must not block subscribes on other sessions.
func (h *Hub) snapshotRoom(sessionKey string) []Sink {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[sessionKey]
	if !ok {
		return nil
	}
	sinks := make([]Sink, 0, len(members))
	for s := range members {
		sinks = append(sinks, s)
	}
	return sinks
}
