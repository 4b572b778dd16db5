// Package runtime hosts the room's orchestration layer: the registry of
// live connections and the hub that serializes mutations and fan-out.
// It contains no business rules beyond event sequencing.
package runtime

import (
	"sync"

	"studyhall/contract"
)

type session struct {
	identity string
	sink     contract.EventSink
}

// Registry tracks which connections are present. It is keyed by the
// per-connection id, never by identity: display names are self-declared
// and may collide, connection ids may not.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// Join registers a connection's sink under its connection id. Joining is
// idempotent per connection: a re-join updates the display identity and
// sink in place instead of duplicating membership.
func (r *Registry) Join(connectionID, identity string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connectionID] = &session{identity: identity, sink: sink}
}

// Leave removes the connection; a no-op if it was never registered or
// already left, so disconnect cleanup can run unconditionally.
func (r *Registry) Leave(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connectionID)
}

// Count reports the live participant count. Display purposes only.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sinks returns a snapshot of the registered sinks. The hub iterates the
// snapshot at broadcast time, so a participant joining or leaving
// mid-broadcast neither breaks the iteration nor receives a duplicate.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, s := range r.sessions {
		sinks = append(sinks, s.sink)
	}
	return sinks
}
