package credentials

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/pairsync/adapters/store"
	"github.com/layer-3/pairsync/clock/clocktest"
	"github.com/layer-3/pairsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fullRegistry struct{}

func (fullRegistry) Reserve(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (fullRegistry) IsReserved(context.Context, string) (bool, error)             { return true, nil }

func TestGenerateDistinctCredentials(t *testing.T) {
	ctx := context.Background()
	registry := store.NewMemoryStore()
	g := NewGenerator(WithRegistry(registry))

	channels := make(map[string]bool)
	keys := make(map[string]bool)
	for i := 0; i < 200; i++ {
		s, err := g.Generate(ctx)
		require.NoError(t, err)
		assert.False(t, channels[s.Channel], "channel reused")
		assert.False(t, keys[s.Key.String()], "key reused")
		channels[s.Channel] = true
		keys[s.Key.String()] = true

		reserved, err := registry.IsReserved(ctx, s.Channel)
		require.NoError(t, err)
		assert.True(t, reserved)
	}
}

func TestGeneratedCredentialsFitBootstrapCode(t *testing.T) {
	g := NewGenerator()
	s, err := g.Generate(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, s.Channel, "|@|")
	assert.NotContains(t, s.Channel, ":")
	assert.False(t, strings.Contains(s.Key.String(), "|@|"))

	code := s.BootstrapCode("")
	scheme, parsed, err := core.ParseBootstrap(code)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultScheme, scheme)
	assert.True(t, parsed.SameCredentials(s))
}

func TestGenerateStampsClock(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g := NewGenerator(WithClock(clocktest.NewFakeClock(start)))
	s, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, s.CreatedAt)
}

func TestGenerateGivesUpWhenRegistryRefuses(t *testing.T) {
	g := NewGenerator(WithRegistry(fullRegistry{}))
	_, err := g.Generate(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
}
