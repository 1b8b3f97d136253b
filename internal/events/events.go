// Package events carries visit notifications from the redirect path to the
// analytics consumer over a topic-based publish/subscribe bus.
//
// Delivery is at-most-once: a message published while no subscriber is
// listening, or dropped by a slow in-memory subscriber, is gone.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTopic is the channel visit messages are published on.
const DefaultTopic = "analytics_event"

// Publisher sends a payload to every current subscriber of topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscription delivers raw payloads until Close is called or the bus goes away,
// at which point Messages is closed.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Bus is a Publisher that can also be subscribed to.
type Bus interface {
	Publisher
	Subscriber
}

// VisitMessage is the wire format of a visit event.
type VisitMessage struct {
	ShortURLID string     `json:"shortUrlId"`
	IPAddress  string     `json:"ipAddress"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

var ErrMissingShortURLID = errors.New("visit message has no shortUrlId")

func (m VisitMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ParseVisitMessage decodes payload. The only required field is shortUrlId;
// a missing timestamp is left nil for the consumer to default.
func ParseVisitMessage(payload []byte) (VisitMessage, error) {
	var m VisitMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return VisitMessage{}, fmt.Errorf("decode visit message: %w", err)
	}
	m.ShortURLID = strings.TrimSpace(m.ShortURLID)
	if m.ShortURLID == "" {
		return VisitMessage{}, ErrMissingShortURLID
	}
	return m, nil
}

// PublishVisit marshals m and publishes it on topic.
func PublishVisit(ctx context.Context, p Publisher, topic string, m VisitMessage) error {
	payload, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("encode visit message: %w", err)
	}
	return p.Publish(ctx, topic, payload)
}
