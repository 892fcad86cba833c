package relay

import (
	"context"
	"fmt"

	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRelay implements ports.Relay with Redis PUBLISH/SUBSCRIBE. Like a
// hosted pub/sub relay it keeps nothing for absent subscribers.
type RedisRelay struct {
	client redis.UniversalClient
	logger zerolog.Logger
	subs   registry
}

// NewRedisRelay creates a relay over a Redis client.
func NewRedisRelay(client redis.UniversalClient, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		logger: logger.With().Str("component", "relay").Logger(),
		subs:   newRegistry(),
	}
}

var _ ports.Relay = (*RedisRelay)(nil)

// Subscribe implements ports.Relay. It returns once Redis has confirmed the
// subscription.
func (r *RedisRelay) Subscribe(ctx context.Context, channel string) (ports.Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %w", core.ErrTransportFailure, channel, err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := newSubscription(func() {
		cancel()
		if err := ps.Close(); err != nil {
			r.logger.Warn().Err(err).Str("channel", channel).Msg("failed to close redis subscription")
		}
	}, subscriptionBuffer)
	if prev := r.subs.swap(channel, sub); prev != nil {
		_ = prev.Close()
	}

	feed := ps.Channel()
	go func() {
		defer close(sub.done)
		defer close(sub.out)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-feed:
				if !ok {
					return
				}
				if !sub.deliver(subCtx, []byte(msg.Payload)) {
					return
				}
			}
		}
	}()

	r.logger.Debug().Str("channel", channel).Msg("subscribed")
	return sub, nil
}

// Publish implements ports.Relay.
func (r *RedisRelay) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish to %s: %w", core.ErrTransportFailure, channel, err)
	}
	return nil
}

// Unsubscribe implements ports.Relay.
func (r *RedisRelay) Unsubscribe(channel string) error {
	sub := r.subs.get(channel)
	if sub == nil {
		return nil
	}
	r.logger.Debug().Str("channel", channel).Msg("unsubscribed")
	return sub.Close()
}

// Close drops every subscription.
func (r *RedisRelay) Close() error {
	for _, sub := range r.subs.all() {
		_ = sub.Close()
	}
	return nil
}
