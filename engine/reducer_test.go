package engine

import (
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/pairsync/actor"
	"github.com/layer-3/pairsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T) core.Session {
	t.Helper()
	var key core.Key
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	return core.NewSession(uuid.NewString(), key, time.Unix(1700000000, 0))
}

func effectTypes(effects []actor.Effect) []string {
	out := make([]string, 0, len(effects))
	for _, e := range effects {
		switch e.(type) {
		case generateCredentials:
			out = append(out, "generate")
		case join:
			out = append(out, "join")
		case leave:
			out = append(out, "leave")
		case armRotation:
			out = append(out, "arm_rotation")
		case stopRotation:
			out = append(out, "stop_rotation")
		case armIdle:
			out = append(out, "arm_idle")
		case stopIdle:
			out = append(out, "stop_idle")
		case startTransfer:
			out = append(out, "start_transfer")
		case cancelTransfer:
			out = append(out, "cancel_transfer")
		case sendBestEffort:
			out = append(out, "send")
		case notify:
			out = append(out, "notify")
		case finish:
			out = append(out, "finish")
		}
	}
	return out
}

func awaitingState(t *testing.T) (State, core.Session) {
	t.Helper()
	reduce := newReducer(DefaultConfig())
	s, _ := reduce(State{}, startCmd{})
	session := testSession(t)
	s, _ = reduce(s, credentialsIssued{epoch: s.Epoch, session: session})
	require.Equal(t, core.PhaseAwaitingPeer, s.Phase)
	return s, session
}

func TestReducerStart(t *testing.T) {
	reduce := newReducer(DefaultConfig())

	s, effects := reduce(State{}, startCmd{})
	assert.Equal(t, core.PhaseAwaitingPeer, s.Phase)
	assert.Equal(t, uint64(1), s.Epoch)
	assert.Equal(t, []string{"arm_idle", "generate"}, effectTypes(effects))

	again, effects := reduce(s, startCmd{})
	assert.Equal(t, s, again)
	assert.Empty(t, effects)
}

func TestReducerCredentialsIssued(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, _ := reduce(State{}, startCmd{})
	session := testSession(t)

	stale, effects := reduce(s, credentialsIssued{epoch: s.Epoch + 5, session: session})
	assert.Equal(t, s, stale)
	assert.Empty(t, effects)

	next, effects := reduce(s, credentialsIssued{epoch: s.Epoch, session: session})
	require.NotNil(t, next.Session)
	assert.Equal(t, session, *next.Session)
	assert.Equal(t, s.Epoch+1, next.Epoch)
	assert.Equal(t, []string{"join", "arm_rotation", "notify"}, effectTypes(effects))
}

func TestReducerRotationLeavesOldChannel(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, first := awaitingState(t)

	s, effects := reduce(s, rotationDue{epoch: s.Epoch})
	assert.Equal(t, []string{"generate"}, effectTypes(effects))

	second := testSession(t)
	s, effects = reduce(s, credentialsIssued{epoch: s.Epoch, session: second})
	assert.Equal(t, []string{"leave", "join", "arm_rotation", "notify"}, effectTypes(effects))
	assert.Equal(t, first, effects[0].(leave).session)
	assert.Equal(t, second, *s.Session)
}

func TestReducerStaleInputsIgnored(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, _ := awaitingState(t)
	old := s.Epoch - 1

	for _, in := range []actor.Input{
		rotationDue{epoch: old},
		messageReceived{epoch: old, msg: core.StartSync{}},
		subscriptionClosed{epoch: old},
		chunkSent{epoch: old, index: 1, count: 2},
		idleExpired{gen: s.IdleGen + 1},
	} {
		next, effects := reduce(s, in)
		assert.Equal(t, s, next, "%T", in)
		assert.Empty(t, effects, "%T", in)
	}
}

func TestReducerStartSyncBeginsTransfer(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, session := awaitingState(t)

	s, effects := reduce(s, messageReceived{epoch: s.Epoch, msg: core.StartSync{}})
	assert.Equal(t, core.PhaseTransferring, s.Phase)
	assert.Equal(t, []string{"stop_rotation", "stop_idle", "notify", "start_transfer"}, effectTypes(effects))
	assert.Equal(t, session, effects[3].(startTransfer).session)

	// A duplicate start-sync does not restart the transfer.
	_, effects = reduce(s, messageReceived{epoch: s.Epoch, msg: core.StartSync{}})
	assert.Empty(t, effects)
}

func TestReducerProgressAndAck(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, _ := awaitingState(t)
	s, _ = reduce(s, messageReceived{epoch: s.Epoch, msg: core.StartSync{}})

	s, effects := reduce(s, chunkSent{epoch: s.Epoch, index: 1, count: 2})
	require.Len(t, effects, 1)
	assert.InDelta(t, 0.5, effects[0].(notify).event.Fraction, 1e-9)

	s, effects = reduce(s, transferFinished{epoch: s.Epoch})
	assert.True(t, s.AwaitingAck)
	assert.Equal(t, []string{"arm_idle"}, effectTypes(effects))

	s, effects = reduce(s, messageReceived{epoch: s.Epoch, msg: core.EndSync{}})
	assert.Equal(t, core.PhaseCompleted, s.Phase)
	assert.Nil(t, s.Session)
	assert.Equal(t, []string{"cancel_transfer", "stop_rotation", "stop_idle", "leave", "notify", "finish"}, effectTypes(effects))
}

func TestReducerWithoutAckCompletesAfterLastChunk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireAck = false
	reduce := newReducer(cfg)
	s, _ := reduce(State{}, startCmd{})
	s, _ = reduce(s, credentialsIssued{epoch: s.Epoch, session: testSession(t)})
	s, _ = reduce(s, messageReceived{epoch: s.Epoch, msg: core.StartSync{}})

	s, _ = reduce(s, transferFinished{epoch: s.Epoch})
	assert.Equal(t, core.PhaseCompleted, s.Phase)
}

func TestReducerPeerAbortDoesNotNotifyPeer(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, _ := awaitingState(t)

	s, effects := reduce(s, messageReceived{epoch: s.Epoch, msg: core.ErrorSync{Message: "nope"}})
	assert.Equal(t, core.PhaseAborted, s.Phase)
	assert.Equal(t, core.ReasonPeerAborted, s.Reason)
	assert.ErrorIs(t, s.Err, core.ErrPeerAborted)
	assert.NotContains(t, effectTypes(effects), "send")
}

func TestReducerAbortNotifiesPeer(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, session := awaitingState(t)

	s, effects := reduce(s, idleExpired{gen: s.IdleGen})
	assert.Equal(t, core.ReasonPeerTimeout, s.Reason)
	assert.Equal(t,
		[]string{"stop_rotation", "stop_idle", "cancel_transfer", "send", "leave", "notify", "finish"},
		effectTypes(effects))
	send := effects[3].(sendBestEffort)
	assert.Equal(t, session, send.session)
	assert.Equal(t, core.ErrorSync{Message: "peer_timeout"}, send.msg)
}

func TestReducerTransferFailure(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, _ := awaitingState(t)
	s, _ = reduce(s, messageReceived{epoch: s.Epoch, msg: core.StartSync{}})

	cause := errors.New("disk on fire")
	s, _ = reduce(s, transferFailed{epoch: s.Epoch, reason: core.ReasonExportFailed, err: cause})
	assert.Equal(t, core.ReasonExportFailed, s.Reason)
	assert.ErrorIs(t, s.Err, core.ErrExportFailed)
	assert.ErrorIs(t, s.Err, cause)
}

func TestReducerRekeyRestartsTransfer(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, first := awaitingState(t)
	s, _ = reduce(s, messageReceived{epoch: s.Epoch, msg: core.StartSync{}})
	s, _ = reduce(s, chunkSent{epoch: s.Epoch, index: 1, count: 3})

	next := testSession(t)
	at := time.Unix(1800000000, 0)
	info := core.ConnectionInfo{Channel: next.Channel, Key: next.Key}
	s, effects := reduce(s, messageReceived{epoch: s.Epoch, msg: info, at: at})

	assert.Equal(t, core.PhaseTransferring, s.Phase)
	assert.True(t, s.Rekeyed)
	assert.Zero(t, s.Sent)
	assert.Equal(t, next.Channel, s.Session.Channel)
	assert.Equal(t, at, s.Session.CreatedAt)
	assert.Equal(t,
		[]string{"cancel_transfer", "leave", "join", "stop_rotation", "notify", "start_transfer"},
		effectTypes(effects))
	assert.Equal(t, first, effects[1].(leave).session)

	// The same credentials again are a no-op.
	again, effects := reduce(s, messageReceived{epoch: s.Epoch, msg: info, at: at})
	assert.Equal(t, s, again)
	assert.Empty(t, effects)
}

func TestReducerTerminalAbsorbsInputs(t *testing.T) {
	reduce := newReducer(DefaultConfig())
	s, _ := awaitingState(t)
	s, _ = reduce(s, cancelCmd{})
	require.Equal(t, core.PhaseAborted, s.Phase)
	assert.Equal(t, core.ReasonUserCancelled, s.Reason)

	for _, in := range []actor.Input{
		startCmd{},
		cancelCmd{},
		idleExpired{gen: s.IdleGen},
		messageReceived{epoch: s.Epoch, msg: core.EndSync{}},
	} {
		next, effects := reduce(s, in)
		assert.Equal(t, s, next)
		assert.Empty(t, effects)
	}
}

func TestProgressStep(t *testing.T) {
	assert.True(t, progressStep(0, 1, 3))
	assert.True(t, progressStep(0, 1, 1))
	assert.False(t, progressStep(1, 2, 1000))
	assert.True(t, progressStep(9, 10, 1000))
	assert.False(t, progressStep(0, 1, 0))
}
