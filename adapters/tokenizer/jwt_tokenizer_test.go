package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestViewerTokenRoundTrip(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t))
	now := time.Now().Truncate(time.Second)

	token, err := tk.ClaimsToToken(&ports.ViewerClaims{
		PairingID: "pairing-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	claims, err := tk.TokenToClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "pairing-1", claims.PairingID)
	assert.True(t, claims.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestViewerTokenRejected(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t))
	now := time.Now()

	expired, err := tk.ClaimsToToken(&ports.ViewerClaims{
		PairingID: "pairing-1",
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	foreign, err := NewJWTTokenizer(newKey(t)).ClaimsToToken(&ports.ViewerClaims{
		PairingID: "pairing-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired": expired,
		"foreign": foreign,
		"garbage": "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tk.TokenToClaims(token)
			assert.ErrorIs(t, err, core.ErrInvalidToken)
		})
	}
}
