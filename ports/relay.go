package ports

import (
	"context"

	"github.com/layer-3/pairsync/core"
)

// Subscription is a scoped handle on one relay channel. Closing it stops
// delivery and closes the Messages channel.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Relay is the untrusted publish/subscribe broker. It moves opaque bytes and
// performs no retries.
type Relay interface {
	// Subscribe starts delivering every message published to channel,
	// including ones published by this process.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	// Publish sends one message. Failures wrap core.ErrTransportFailure.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Unsubscribe drops any subscription on channel. It is idempotent.
	Unsubscribe(channel string) error
}

// SecureSubscription yields decrypted, decoded control messages.
type SecureSubscription interface {
	Messages() <-chan core.ControlMessage
	Close() error
}

// SecureChannel joins a session's channel and speaks control messages on it.
type SecureChannel interface {
	Join(ctx context.Context, session core.Session) (SecureSubscription, error)
	Send(ctx context.Context, session core.Session, msg core.ControlMessage) error
	Leave(session core.Session) error
}
