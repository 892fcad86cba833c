package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/pairsync/adapters/credentials"
	"github.com/layer-3/pairsync/adapters/events"
	"github.com/layer-3/pairsync/adapters/relay"
	"github.com/layer-3/pairsync/adapters/tokenizer"
	"github.com/layer-3/pairsync/companion"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/engine"
	"github.com/layer-3/pairsync/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *PairingService
	pubSub    *gochannel.GoChannel
	lifecycle <-chan *message.Message
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pubSub := relay.NewMemoryPubSub(watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	lifecycle, err := pubSub.Subscribe(context.Background(), events.LifecycleTopic)
	require.NoError(t, err)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	rel := relay.NewWatermillRelay(pubSub, pubSub, zerolog.Nop())
	secure := relay.NewSecure(rel, zerolog.Nop())
	factory := func(id string, source ports.ExportSource, observers []ports.Observer) (*engine.Engine, error) {
		return engine.New(engine.DefaultConfig(), engine.Deps{
			Channel:   secure,
			Generator: credentials.NewGenerator(),
			Export:    source,
			Observers: observers,
			Logger:    zerolog.Nop(),
		})
	}

	svc := NewPairingService(Config{}, factory, tokenizer.NewJWTTokenizer(key),
		events.NewWatermillPublisher(pubSub), zerolog.Nop())
	t.Cleanup(svc.Close)

	return &fixture{svc: svc, pubSub: pubSub, lifecycle: lifecycle}
}

func (f *fixture) nextLifecycle(t *testing.T) events.LifecycleEvent {
	t.Helper()
	select {
	case msg := <-f.lifecycle:
		msg.Ack()
		var ev events.LifecycleEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no lifecycle event")
	}
	return events.LifecycleEvent{}
}

func awaitCode(t *testing.T, svc *PairingService, id string) string {
	t.Helper()
	var code string
	require.Eventually(t, func() bool {
		var err error
		code, err = svc.BootstrapCode(id)
		return err == nil
	}, 3*time.Second, 5*time.Millisecond)
	return code
}

func TestCreateIssuesScopedToken(t *testing.T) {
	f := newFixture(t)

	id, token, err := f.svc.Create(context.Background(), []byte("export"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	claims, err := f.svc.Authorize(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.PairingID)

	_, err = f.svc.Authorize(token + "x")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestStatusShowsCredentials(t *testing.T) {
	f := newFixture(t)

	id, _, err := f.svc.Create(context.Background(), []byte("export"))
	require.NoError(t, err)
	code := awaitCode(t, f.svc, id)

	st, err := f.svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_peer", st.Phase)
	assert.Equal(t, code, st.Code)

	scheme, session, err := core.ParseBootstrap(code)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultScheme, scheme)
	assert.Equal(t, session.Channel, st.Channel)

	ev := f.nextLifecycle(t)
	assert.Equal(t, id, ev.PairingID)
	assert.Equal(t, "credentials_changed", ev.Kind)
	assert.Equal(t, session.Channel, ev.Channel)
}

func TestUnknownPairing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Status("missing")
	assert.ErrorIs(t, err, core.ErrPairingNotFound)
	_, err = f.svc.BootstrapCode("missing")
	assert.ErrorIs(t, err, core.ErrPairingNotFound)
	assert.ErrorIs(t, f.svc.Cancel("missing"), core.ErrPairingNotFound)
}

func TestCancelPairing(t *testing.T) {
	f := newFixture(t)

	id, _, err := f.svc.Create(context.Background(), []byte("export"))
	require.NoError(t, err)
	awaitCode(t, f.svc, id)

	require.NoError(t, f.svc.Cancel(id))

	st, err := f.svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, "aborted", st.Phase)
	assert.Equal(t, "user_cancelled", st.Reason)
	assert.Empty(t, st.Code)

	_, err = f.svc.BootstrapCode(id)
	assert.ErrorIs(t, err, ErrNoCredentials)

	assert.Equal(t, "credentials_changed", f.nextLifecycle(t).Kind)
	aborted := f.nextLifecycle(t)
	assert.Equal(t, "aborted", aborted.Kind)
	assert.Equal(t, "user_cancelled", aborted.Reason)
}

func TestPairingCompletesWithCompanion(t *testing.T) {
	f := newFixture(t)
	data := []byte(`{"wallets":["a","b"]}`)

	id, _, err := f.svc.Create(context.Background(), data)
	require.NoError(t, err)
	code := awaitCode(t, f.svc, id)

	companionRelay := relay.NewWatermillRelay(f.pubSub, f.pubSub, zerolog.Nop())
	defer companionRelay.Close()
	r := companion.NewReceiver(relay.NewSecure(companionRelay, zerolog.Nop()))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	got, err := r.ReceiveCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.Eventually(t, func() bool {
		st, err := f.svc.Status(id)
		return err == nil && st.Phase == "completed"
	}, 3*time.Second, 5*time.Millisecond)
}

func TestSweepForgetsFinishedPairings(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.svc.now = func() time.Time { return now }

	id, _, err := f.svc.Create(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(id))

	now = now.Add(f.svc.cfg.Retention + time.Second)
	f.svc.sweep()

	_, err = f.svc.Status(id)
	assert.ErrorIs(t, err, core.ErrPairingNotFound)
}
