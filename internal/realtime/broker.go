// Package realtime provides the publish/subscribe channels room sessions use to
// exchange broadcast events.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// EventMessage is the event type carrying a persisted message row.
const EventMessage = "message"

var ErrBrokerClosed = errors.New("broker closed")

// Event is a transient notification delivered to channel subscribers.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent encodes payload into an Event of the given type.
func NewEvent(eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: body}, nil
}

// Handler receives events for a subscription.
type Handler func(Event)

// Broker is the channel transport.
type Broker interface {
	// Subscribe returns once the transport has acknowledged the subscription.
	Subscribe(ctx context.Context, channel string, handler Handler) (Subscription, error)
	// Publish delivers event to every subscriber of channel.
	Publish(ctx context.Context, channel string, event Event) error
	Close() error
}

// Subscription is a live membership of one channel.
type Subscription interface {
	// Publish delivers event to the other subscribers of the channel.
	Publish(ctx context.Context, event Event) error
	Close() error
}

// ChannelName returns the broadcast channel for a room.
func ChannelName(roomID string) string {
	return "room:" + roomID
}
