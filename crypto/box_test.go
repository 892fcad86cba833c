package crypto

import (
	"testing"

	"github.com/layer-3/pairsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(channel string, seed byte) core.Session {
	var key core.Key
	for i := range key {
		key[i] = seed + byte(i)
	}
	return core.Session{Channel: channel, Key: key}
}

func TestBoxRoundTrip(t *testing.T) {
	box, err := NewBox(testSession("chan-a", 1))
	require.NoError(t, err)

	frame, err := box.Seal([]byte(`{"event":"start-sync"}`))
	require.NoError(t, err)
	assert.Len(t, frame, FrameOverhead+len(`{"event":"start-sync"}`))

	plain, err := box.Open(frame)
	require.NoError(t, err)
	assert.Equal(t, `{"event":"start-sync"}`, string(plain))
}

func TestBoxNoncesDiffer(t *testing.T) {
	box, err := NewBox(testSession("chan-a", 1))
	require.NoError(t, err)

	a, err := box.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := box.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBoxRejectsForeignFrames(t *testing.T) {
	box, err := NewBox(testSession("chan-a", 1))
	require.NoError(t, err)
	frame, err := box.Seal([]byte("secret"))
	require.NoError(t, err)

	otherKey, err := NewBox(testSession("chan-a", 9))
	require.NoError(t, err)
	_, err = otherKey.Open(frame)
	require.ErrorIs(t, err, ErrOpenFailed)

	otherChannel, err := NewBox(testSession("chan-b", 1))
	require.NoError(t, err)
	_, err = otherChannel.Open(frame)
	require.ErrorIs(t, err, ErrOpenFailed)

	tampered := append([]byte(nil), frame...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = box.Open(tampered)
	require.ErrorIs(t, err, ErrOpenFailed)

	_, err = box.Open(frame[:10])
	require.ErrorIs(t, err, ErrOpenFailed)
}
