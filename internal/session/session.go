// Package session carries the authenticated identity through a request and
// fans session events out to the components that react to them.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Identity is the authenticated caller
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, if any
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// EventType names a session event
type EventType string

const (
	ProfileChanged EventType = "profile.changed"
	LoggedOut      EventType = "logout"
)

// Event is published when a user's session state changes
type Event struct {
	Type   EventType `json:"type"`
	UserID uuid.UUID `json:"user_id"`
	At     time.Time `json:"at"`
}

// Hub delivers events synchronously to subscribers in registration order.
type Hub struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers fn for every subsequent event
func (h *Hub) Subscribe(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}

// Publish sends an event to all subscribers. A nil hub drops it.
func (h *Hub) Publish(typ EventType, userID uuid.UUID) {
	if h == nil {
		return
	}
	ev := Event{Type: typ, UserID: userID, At: time.Now().UTC()}

	h.mu.RLock()
	subs := make([]func(Event), len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
