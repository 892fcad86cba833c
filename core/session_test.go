package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapCodeRoundTrip(t *testing.T) {
	var key Key
	for i := range key {
		key[i] = byte(i * 7)
	}
	s := NewSession("4f1c0a62-2a55-4f0e-9d3b-0c0b0f2b7a11", key, Session{}.CreatedAt)

	code := s.BootstrapCode("walletsync")
	assert.Equal(t, "walletsync:4f1c0a62-2a55-4f0e-9d3b-0c0b0f2b7a11|@|"+key.String(), code)

	scheme, parsed, err := ParseBootstrap(code)
	require.NoError(t, err)
	assert.Equal(t, "walletsync", scheme)
	assert.True(t, parsed.SameCredentials(s))
}

func TestParseBootstrapRejectsMalformed(t *testing.T) {
	var key Key
	for _, code := range []string{
		"",
		"no-scheme-here",
		"walletsync:channel-only",
		"walletsync:|@|" + key.String(),
		"walletsync:chan|@|not-a-key",
	} {
		_, _, err := ParseBootstrap(code)
		assert.ErrorIs(t, err, ErrInvalidBootstrap, code)
	}
}

func TestAbortReasonErr(t *testing.T) {
	assert.ErrorIs(t, ReasonPeerTimeout.Err(), ErrPeerTimeout)
	assert.ErrorIs(t, ReasonUserCancelled.Err(), ErrUserCancelled)
	assert.NoError(t, ReasonNone.Err())
	assert.True(t, PhaseAborted.Terminal())
	assert.False(t, PhaseTransferring.Terminal())
}
