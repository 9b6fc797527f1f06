// Package present carries typed state snapshots from the primary (chair)
// view to a secondary projection display. Delivery is one directional and
// best effort: no buffering, no replay, last value wins per channel.
package present

import (
	"encoding/json"
	"log"
	"sync"

	"gavel/api/internal/committee"
)

type Kind string

const (
	KindIdle       Kind = "idle"
	KindUnmod      Kind = "unmod"
	KindMod        Kind = "mod"
	KindResolution Kind = "res"
)

// Snapshot is the tagged union a presentation window renders. Exactly one
// variant is current at a time; switching kinds discards the previous
// payload from display.
type Snapshot struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Idle() Snapshot {
	return Snapshot{Type: KindIdle}
}

func Unmod(t committee.TimerState) Snapshot {
	return Snapshot{Type: KindUnmod, Data: marshal(t)}
}

func Mod(c committee.CaucusState) Snapshot {
	return Snapshot{Type: KindMod, Data: marshal(c)}
}

func Resolution(r committee.ResolutionData) Snapshot {
	return Snapshot{Type: KindResolution, Data: marshal(r)}
}

// marshal freezes the payload at emit time. Receivers decode their own
// copy, so the primary's live state is never aliased across the bridge.
func marshal(v any) json.RawMessage {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("present: marshal snapshot: %v", err)
		return nil
	}
	return payload
}

func (s Snapshot) copy() Snapshot {
	if s.Data == nil {
		return s
	}
	data := make(json.RawMessage, len(s.Data))
	copy(data, s.Data)
	return Snapshot{Type: s.Type, Data: data}
}

// Hub is the broadcast channel for one session's presentation display.
type Hub struct {
	mu        sync.Mutex
	listeners map[int]chan Snapshot
	onClose   map[int]func()
	next      int
}

func NewHub() *Hub {
	return &Hub{
		listeners: make(map[int]chan Snapshot),
		onClose:   make(map[int]func()),
	}
}

// Attach registers a presentation window for the lifetime of its
// connection. The returned detach function deregisters the listener,
// closes its channel and invokes onClose in the primary view; it must be
// called on every teardown path. A window attached after events fired
// starts idle: there is no replay.
func (h *Hub) Attach(onClose func()) (<-chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Snapshot, 1)
	h.listeners[id] = ch
	if onClose != nil {
		h.onClose[id] = onClose
	}

	detach := func() {
		h.mu.Lock()
		listener, ok := h.listeners[id]
		closeCb := h.onClose[id]
		delete(h.listeners, id)
		delete(h.onClose, id)
		h.mu.Unlock()
		if !ok {
			return
		}
		close(listener)
		if closeCb != nil {
			closeCb()
		}
	}
	return ch, detach
}

// Publish broadcasts a snapshot to every attached window. Each listener
// receives its own copy; with no window attached the event is dropped.
// A lagging listener only ever sees the newest snapshot.
func (h *Hub) Publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, listener := range h.listeners {
		snap := s.copy()
		select {
		case listener <- snap:
		default:
			select {
			case <-listener:
			default:
			}
			listener <- snap
		}
	}
}

// ListenerCount reports how many windows are attached.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
