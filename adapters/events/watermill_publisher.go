package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
)

// LifecycleTopic carries pairing lifecycle events.
const LifecycleTopic = "pairsync.lifecycle"

// LifecycleEvent is the published form of a core.Event. It names the channel
// a pairing moved to but never its key.
type LifecycleEvent struct {
	PairingID string  `json:"pairing_id"`
	Kind      string  `json:"kind"`
	Channel   string  `json:"channel,omitempty"`
	Fraction  float64 `json:"fraction,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     LifecycleTopic,
	}
}

// PublishLifecycle publishes one lifecycle event
func (p *WatermillPublisher) PublishLifecycle(ctx context.Context, pairingID string, event core.Event) error {
	payload, err := json.Marshal(NewLifecycleEvent(pairingID, event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("pairing_id", pairingID)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NewLifecycleEvent strips an engine event down to its public fields.
func NewLifecycleEvent(pairingID string, event core.Event) LifecycleEvent {
	out := LifecycleEvent{
		PairingID: pairingID,
		Kind:      string(event.Kind),
		Fraction:  event.Fraction,
		Reason:    string(event.Reason),
	}
	if event.Kind == core.EventCredentialsChanged {
		out.Channel = event.Session.Channel
	}
	if event.Err != nil {
		out.Error = event.Err.Error()
	}
	return out
}
