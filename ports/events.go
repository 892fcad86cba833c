package ports

import (
	"context"

	"github.com/layer-3/pairsync/core"
)

// Observer receives pairing lifecycle events. HandleEvent is called from the
// engine loop and must not block; in particular it must not call a blocking
// engine method such as Cancel or Wait.
type Observer interface {
	HandleEvent(event core.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event core.Event)

// HandleEvent implements Observer.
func (f ObserverFunc) HandleEvent(event core.Event) { f(event) }

// EventPublisher announces pairing lifecycle changes to other processes.
// Implementations never publish session keys.
type EventPublisher interface {
	PublishLifecycle(ctx context.Context, pairingID string, event core.Event) error
}
