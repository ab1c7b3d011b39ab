package eventbus

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// EventStore is an append-only event log
type EventStore interface {
	Append(subject string, data any) error
	Read(subject string, limit int) ([]Event, error)
}

// Event wraps the payload with metadata
type Event struct {
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Read returns up to limit stored events on subject, oldest first.
// Without JetStream there is no history and the result is empty.
func (b *Bus) Read(subject string, limit int) ([]Event, error) {
	if b == nil || b.js == nil {
		return []Event{}, nil
	}
	if limit <= 0 {
		limit = 100
	}

	sub, err := b.js.SubscribeSync(subject, nats.BindStream(StreamName), nats.DeliverAll(), nats.AckNone())
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	events := make([]Event, 0, limit)
	for len(events) < limit {
		msg, err := sub.NextMsg(100 * time.Millisecond)
		if errors.Is(err, nats.ErrTimeout) {
			break
		}
		if err != nil {
			return events, err
		}

		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// MemoryStore keeps the most recent events in process. It backs the event log
// when NATS is not configured.
type MemoryStore struct {
	mu     sync.Mutex
	max    int
	events []Event
}

func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryStore{max: max}
}

func (s *MemoryStore) Append(subject string, data any) error {
	ev, err := newEvent(subject, data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}
	return nil
}

// Read matches subject exactly, or by prefix when it ends in ">"
func (s *MemoryStore) Read(subject string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	prefix, wildcard := strings.CutSuffix(subject, ">")

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, 0, limit)
	for _, ev := range s.events {
		if len(out) == limit {
			break
		}
		if ev.Subject == subject || (wildcard && strings.HasPrefix(ev.Subject, prefix)) {
			out = append(out, ev)
		}
	}
	return out, nil
}
