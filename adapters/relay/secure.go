package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/crypto"
	"github.com/layer-3/pairsync/ports"
	"github.com/layer-3/pairsync/wire"
	"github.com/rs/zerolog"
)

// Secure is the boundary between the raw relay and the pairing protocol.
// Outbound messages are encoded and sealed with the session key; inbound
// frames are opened and decoded exactly once, and anything that fails either
// step is dropped.
type Secure struct {
	relay  ports.Relay
	logger zerolog.Logger
}

// NewSecure wraps a relay.
func NewSecure(relay ports.Relay, logger zerolog.Logger) *Secure {
	return &Secure{
		relay:  relay,
		logger: logger.With().Str("component", "secure_channel").Logger(),
	}
}

var _ ports.SecureChannel = (*Secure)(nil)

// Join implements ports.SecureChannel.
func (s *Secure) Join(ctx context.Context, session core.Session) (ports.SecureSubscription, error) {
	box, err := crypto.NewBox(session)
	if err != nil {
		return nil, err
	}
	raw, err := s.relay.Subscribe(ctx, session.Channel)
	if err != nil {
		return nil, err
	}

	sub := &secureSubscription{
		raw:  raw,
		out:  make(chan core.ControlMessage, subscriptionBuffer),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	logger := s.logger.With().Str("channel", session.Channel).Logger()

	go func() {
		defer close(sub.done)
		defer close(sub.out)
		for frame := range raw.Messages() {
			plain, err := box.Open(frame)
			if err != nil {
				logger.Debug().Err(err).Msg("dropping unreadable frame")
				continue
			}
			msg, err := wire.Decode(plain)
			if err != nil {
				logger.Debug().Err(err).Msg("dropping malformed message")
				continue
			}
			select {
			case sub.out <- msg:
			case <-sub.stop:
				return
			}
		}
	}()

	return sub, nil
}

// Send implements ports.SecureChannel.
func (s *Secure) Send(ctx context.Context, session core.Session, msg core.ControlMessage) error {
	plain, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	box, err := crypto.NewBox(session)
	if err != nil {
		return err
	}
	frame, err := box.Seal(plain)
	if err != nil {
		return err
	}
	return s.relay.Publish(ctx, session.Channel, frame)
}

// Leave implements ports.SecureChannel.
func (s *Secure) Leave(session core.Session) error {
	return s.relay.Unsubscribe(session.Channel)
}

type secureSubscription struct {
	raw  ports.Subscription
	out  chan core.ControlMessage
	stop chan struct{}
	done chan struct{}
	once sync.Once
	err  error
}

// Messages implements ports.SecureSubscription.
func (s *secureSubscription) Messages() <-chan core.ControlMessage { return s.out }

// Close implements ports.SecureSubscription.
func (s *secureSubscription) Close() error {
	s.once.Do(func() {
		close(s.stop)
		if err := s.raw.Close(); err != nil && !errors.Is(err, context.Canceled) {
			s.err = fmt.Errorf("failed to close subscription: %w", err)
		}
		<-s.done
	})
	return s.err
}
