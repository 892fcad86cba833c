package relay

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
	"github.com/rs/zerolog"
)

const subscriptionBuffer = 64

// NewMemoryPubSub builds the in-process pub/sub used by the memory backend and
// tests. Publish returns only after every subscriber acked, so sequential
// publishes arrive in order; the relay pump acks before it delivers.
func NewMemoryPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}

// WatermillRelay implements ports.Relay on any watermill Publisher and
// Subscriber pair: gochannel in-process, redisstream in production.
type WatermillRelay struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     zerolog.Logger
	subs       registry
}

// NewWatermillRelay creates a relay over a watermill pub/sub.
func NewWatermillRelay(publisher message.Publisher, subscriber message.Subscriber, logger zerolog.Logger) *WatermillRelay {
	return &WatermillRelay{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger.With().Str("component", "relay").Logger(),
		subs:       newRegistry(),
	}
}

var _ ports.Relay = (*WatermillRelay)(nil)

// Subscribe implements ports.Relay. A second subscription to the same channel
// replaces the first.
func (r *WatermillRelay) Subscribe(ctx context.Context, channel string) (ports.Subscription, error) {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	msgs, err := r.subscriber.Subscribe(subCtx, channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: subscribe %s: %w", core.ErrTransportFailure, channel, err)
	}

	sub := newSubscription(cancel, subscriptionBuffer)
	if prev := r.subs.swap(channel, sub); prev != nil {
		_ = prev.Close()
	}

	go func() {
		defer close(sub.done)
		defer close(sub.out)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				payload := append([]byte(nil), msg.Payload...)
				msg.Ack()
				if !sub.deliver(subCtx, payload) {
					return
				}
			}
		}
	}()

	r.logger.Debug().Str("channel", channel).Msg("subscribed")
	return sub, nil
}

// Publish implements ports.Relay.
func (r *WatermillRelay) Publish(ctx context.Context, channel string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := r.publisher.Publish(channel, msg); err != nil {
		return fmt.Errorf("%w: publish to %s: %w", core.ErrTransportFailure, channel, err)
	}
	return nil
}

// Unsubscribe implements ports.Relay.
func (r *WatermillRelay) Unsubscribe(channel string) error {
	sub := r.subs.get(channel)
	if sub == nil {
		return nil
	}
	r.logger.Debug().Str("channel", channel).Msg("unsubscribed")
	return sub.Close()
}

// Close drops every subscription. The underlying publisher and subscriber
// stay owned by the caller.
func (r *WatermillRelay) Close() error {
	for _, sub := range r.subs.all() {
		_ = sub.Close()
	}
	return nil
}
