package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/pairsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishLifecycleOmitsKey(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer pubSub.Close()

	msgs, err := pubSub.Subscribe(context.Background(), LifecycleTopic)
	require.NoError(t, err)

	var key core.Key
	key[0] = 0xAB
	session := core.NewSession("chan-1", key, time.Now())

	p := NewWatermillPublisher(pubSub)
	require.NoError(t, p.PublishLifecycle(context.Background(), "pairing-1", core.Event{
		Kind:    core.EventCredentialsChanged,
		Session: session,
	}))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, "pairing-1", msg.Metadata.Get("pairing_id"))
		assert.NotContains(t, string(msg.Payload), key.String())

		var ev LifecycleEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, LifecycleEvent{
			PairingID: "pairing-1",
			Kind:      "credentials_changed",
			Channel:   "chan-1",
		}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no lifecycle event published")
	}
}

func TestNewLifecycleEventAborted(t *testing.T) {
	ev := NewLifecycleEvent("p", core.Event{
		Kind:   core.EventAborted,
		Reason: core.ReasonPeerTimeout,
		Err:    errors.New("peer did not respond in time"),
	})
	assert.Equal(t, "aborted", ev.Kind)
	assert.Equal(t, "peer_timeout", ev.Reason)
	assert.Equal(t, "peer did not respond in time", ev.Error)
	assert.Empty(t, ev.Channel)
}
