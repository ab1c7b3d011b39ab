package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamName is the JetStream stream holding all domain events
const StreamName = "PROFLINKER"

// Domain event subjects
const (
	SubjectProfileChanged      = "proflinker.profile.changed"
	SubjectLogout              = "proflinker.session.logout"
	SubjectGenerationCompleted = "proflinker.generation.completed"
	SubjectFavoritesCompleted  = "proflinker.favorites.completed"
	SubjectEmailSent           = "proflinker.email.sent"
	SubjectVerificationSent    = "proflinker.verification.sent"
)

// Bus publishes domain events to NATS, through JetStream when available.
// A nil *Bus drops events.
type Bus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// Connect dials NATS and prepares the event stream
func Connect(url string, logger *zap.Logger) (*Bus, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("proflinker-api"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	bus := &Bus{nc: nc, logger: logger}

	js, err := nc.JetStream()
	if err != nil {
		logger.Warn("JetStream unavailable, falling back to core NATS", zap.Error(err))
		return bus, nil
	}
	if err := ensureStream(js); err != nil {
		logger.Warn("failed to provision event stream", zap.Error(err))
		return bus, nil
	}
	bus.js = js

	logger.Info("NATS and JetStream initialized", zap.String("stream", StreamName))
	return bus, nil
}

func ensureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(StreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"proflinker.>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	return err
}

// Close drains the connection
func (b *Bus) Close() {
	if b == nil || b.nc == nil {
		return
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
	}
}

// Connected reports whether the bus holds a live connection
func (b *Bus) Connected() bool {
	return b != nil && b.nc != nil && b.nc.IsConnected()
}

// Append publishes data as an event on subject
func (b *Bus) Append(subject string, data any) error {
	if b == nil || b.nc == nil {
		return nil
	}
	ev, err := newEvent(subject, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if b.js != nil {
		_, err = b.js.Publish(subject, payload, nats.MsgId(ev.ID))
		return err
	}
	return b.nc.Publish(subject, payload)
}

// Subscribe registers handler for events on subject
func (b *Bus) Subscribe(subject string, handler func(Event)) (*nats.Subscription, error) {
	if b == nil || b.nc == nil {
		return nil, nats.ErrConnectionClosed
	}
	return b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.logger.Warn("dropping undecodable event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(ev)
	})
}

func newEvent(subject string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode event: %w", err)
	}
	return Event{
		ID:        uuid.NewString(),
		Subject:   subject,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}
