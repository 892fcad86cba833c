package main

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/pairsync/adapters/credentials"
	"github.com/layer-3/pairsync/adapters/relay"
	"github.com/layer-3/pairsync/adapters/store"
	"github.com/layer-3/pairsync/config"
	"github.com/layer-3/pairsync/engine"
	"github.com/layer-3/pairsync/logging"
	"github.com/layer-3/pairsync/ports"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	channel   *relay.Secure
	registry  ports.ChannelRegistry
	publisher message.Publisher
	closers   []func() error
}

// wireApp builds the relay stack for the configured backend.
func wireApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	wmLogger := logging.NewWatermillAdapter(logger)

	var raw ports.Relay
	switch cfg.Relay.Backend {
	case config.BackendMemory:
		pubSub := relay.NewMemoryPubSub(wmLogger)
		wm := relay.NewWatermillRelay(pubSub, pubSub, logger)
		raw = wm
		a.registry = store.NewMemoryStore()
		a.publisher = pubSub
		a.closers = append(a.closers, wm.Close, pubSub.Close)

	case config.BackendRedisStream, config.BackendRedis:
		opts, err := redis.ParseURL(cfg.Relay.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.registry = store.NewRedisStore(client)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wmLogger)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to create redis publisher: %w", err)
		}
		a.publisher = publisher

		if cfg.Relay.Backend == config.BackendRedis {
			rr := relay.NewRedisRelay(client, logger)
			raw = rr
			a.closers = append(a.closers, rr.Close)
		} else {
			subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{Client: client}, wmLogger)
			if err != nil {
				_ = publisher.Close()
				_ = client.Close()
				return nil, fmt.Errorf("failed to create redis subscriber: %w", err)
			}
			wm := relay.NewWatermillRelay(publisher, subscriber, logger)
			raw = wm
			a.closers = append(a.closers, wm.Close, subscriber.Close)
		}
		a.closers = append(a.closers, publisher.Close, client.Close)

	default:
		return nil, fmt.Errorf("unknown relay backend %q", cfg.Relay.Backend)
	}

	a.channel = relay.NewSecure(raw, logger)
	return a, nil
}

func (a *app) newEngine(source ports.ExportSource, observers []ports.Observer, logger zerolog.Logger) (*engine.Engine, error) {
	return engine.New(a.cfg.Engine(), engine.Deps{
		Channel:   a.channel,
		Generator: credentials.NewGenerator(credentials.WithRegistry(a.registry)),
		Export:    source,
		Observers: observers,
		Logger:    logger,
	})
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
