package credentials

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/pairsync/clock"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
)

const (
	// DefaultReservationTTL keeps a channel name out of circulation well past
	// the life of any session that could have used it.
	DefaultReservationTTL = 24 * time.Hour

	maxAttempts = 3
)

// ErrExhausted is returned when every generated channel was already reserved.
var ErrExhausted = errors.New("could not reserve a fresh channel")

// Generator issues random (channel, key) pairs. Channels are UUIDv4 strings
// and keys are 32 bytes, both from crypto/rand.
type Generator struct {
	registry ports.ChannelRegistry
	clock    clock.Clock
	ttl      time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithRegistry reserves every issued channel in r.
func WithRegistry(r ports.ChannelRegistry) Option {
	return func(g *Generator) { g.registry = r }
}

// WithClock sets the clock used to stamp CreatedAt.
func WithClock(c clock.Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithReservationTTL sets how long issued channels stay reserved.
func WithReservationTTL(ttl time.Duration) Option {
	return func(g *Generator) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// NewGenerator creates a credential generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		clock: clock.Real{},
		ttl:   DefaultReservationTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ ports.CredentialGenerator = (*Generator)(nil)

// Generate returns a fresh session.
func (g *Generator) Generate(ctx context.Context) (core.Session, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return core.Session{}, fmt.Errorf("failed to generate channel: %w", err)
		}
		channel := id.String()

		if g.registry != nil {
			ok, err := g.registry.Reserve(ctx, channel, g.ttl)
			if err != nil {
				return core.Session{}, err
			}
			if !ok {
				continue
			}
		}

		var key core.Key
		if _, err := rand.Read(key[:]); err != nil {
			return core.Session{}, fmt.Errorf("failed to generate key: %w", err)
		}
		return core.NewSession(channel, key, g.clock.Now()), nil
	}
	return core.Session{}, ErrExhausted
}
