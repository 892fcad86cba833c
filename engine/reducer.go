package engine

import (
	"errors"
	"fmt"

	"github.com/layer-3/pairsync/actor"
	"github.com/layer-3/pairsync/core"
)

// newReducer returns the pure transition function for cfg.
func newReducer(cfg Config) actor.ReducerFunc[State] {
	r := reducer{cfg: cfg}
	return r.reduce
}

type reducer struct {
	cfg Config
}

func (r reducer) reduce(s State, in actor.Input) (State, []actor.Effect) {
	if s.Phase.Terminal() {
		return s, nil
	}

	switch in := in.(type) {
	case startCmd:
		if s.Phase != core.PhaseIdle {
			return s, nil
		}
		s.Phase = core.PhaseAwaitingPeer
		s.Epoch++
		s.IdleGen++
		return s, []actor.Effect{
			armIdle{gen: s.IdleGen, after: r.cfg.IdleTimeout},
			generateCredentials{epoch: s.Epoch},
		}

	case cancelCmd:
		return r.abort(s, core.ReasonUserCancelled, core.ErrUserCancelled, true)

	case credentialsIssued:
		if in.epoch != s.Epoch || s.Phase != core.PhaseAwaitingPeer {
			return s, nil
		}
		return r.installSession(s, in.session, false)

	case credentialsFailed:
		if in.epoch != s.Epoch || s.Phase != core.PhaseAwaitingPeer {
			return s, nil
		}
		return r.abort(s, core.ReasonTransportFailure, wrap(core.ErrTransportFailure, in.err), true)

	case rotationDue:
		if in.epoch != s.Epoch || s.Phase != core.PhaseAwaitingPeer || s.Rekeyed {
			return s, nil
		}
		return s, []actor.Effect{generateCredentials{epoch: s.Epoch}}

	case idleExpired:
		if in.gen != s.IdleGen {
			return s, nil
		}
		if s.Phase == core.PhaseAwaitingPeer || (s.Phase == core.PhaseTransferring && s.AwaitingAck) {
			return r.abort(s, core.ReasonPeerTimeout, core.ErrPeerTimeout, true)
		}
		return s, nil

	case subscribeFailed:
		if in.epoch != s.Epoch || s.Phase == core.PhaseIdle {
			return s, nil
		}
		return r.abort(s, core.ReasonTransportFailure, wrap(core.ErrTransportFailure, in.err), true)

	case subscriptionClosed:
		if in.epoch != s.Epoch || s.Phase == core.PhaseIdle {
			return s, nil
		}
		return r.abort(s, core.ReasonTransportFailure,
			fmt.Errorf("%w: subscription closed", core.ErrTransportFailure), false)

	case messageReceived:
		if in.epoch != s.Epoch {
			return s, nil
		}
		return r.handleMessage(s, in)

	case chunkSent:
		if in.epoch != s.Epoch || s.Phase != core.PhaseTransferring {
			return s, nil
		}
		prev := s.Sent
		s.Sent, s.Total = in.index, in.count
		if !progressStep(prev, in.index, in.count) {
			return s, nil
		}
		return s, []actor.Effect{notify{event: core.Event{
			Kind:     core.EventSyncProgress,
			Fraction: float64(in.index) / float64(in.count),
		}}}

	case transferFinished:
		if in.epoch != s.Epoch || s.Phase != core.PhaseTransferring {
			return s, nil
		}
		if !r.cfg.RequireAck {
			return r.complete(s)
		}
		s.AwaitingAck = true
		s.IdleGen++
		return s, []actor.Effect{armIdle{gen: s.IdleGen, after: r.cfg.AckTimeout}}

	case transferFailed:
		if in.epoch != s.Epoch || s.Phase != core.PhaseTransferring {
			return s, nil
		}
		return r.abort(s, in.reason, wrap(in.reason.Err(), in.err), true)
	}

	return s, nil
}

func (r reducer) handleMessage(s State, in messageReceived) (State, []actor.Effect) {
	switch msg := in.msg.(type) {
	case core.StartSync:
		if s.Phase != core.PhaseAwaitingPeer || s.Session == nil {
			return s, nil
		}
		s.Phase = core.PhaseTransferring
		s.Sent, s.Total = 0, 0
		s.AwaitingAck = false
		return s, []actor.Effect{
			stopRotation{},
			stopIdle{},
			notify{event: core.Event{Kind: core.EventSyncStarted}},
			startTransfer{epoch: s.Epoch, session: *s.Session},
		}

	case core.ConnectionInfo:
		next := msg.Session()
		next.CreatedAt = in.at
		if s.Session != nil && s.Session.SameCredentials(next) {
			return s, nil
		}
		return r.installSession(s, next, true)

	case core.EndSync:
		if s.Phase != core.PhaseTransferring {
			return s, nil
		}
		return r.complete(s)

	case core.ErrorSync:
		err := fmt.Errorf("%w: %s", core.ErrPeerAborted, msg.Message)
		return r.abort(s, core.ReasonPeerAborted, err, false)
	}

	// syncing-data on the primary side is our own echo.
	return s, nil
}

// installSession replaces the current credentials. A peer re-key also stops
// rotation and restarts an in-flight transfer from the first chunk.
func (r reducer) installSession(s State, next core.Session, rekey bool) (State, []actor.Effect) {
	var effects []actor.Effect
	transferring := s.Phase == core.PhaseTransferring

	if transferring {
		effects = append(effects, cancelTransfer{})
	}
	if s.Session != nil {
		effects = append(effects, leave{session: *s.Session})
	}

	s.Epoch++
	s.Session = &next
	if rekey {
		s.Rekeyed = true
	}

	effects = append(effects, join{epoch: s.Epoch, session: next})
	if s.Rekeyed {
		effects = append(effects, stopRotation{})
	} else {
		effects = append(effects, armRotation{epoch: s.Epoch, after: r.cfg.RotationInterval})
	}
	effects = append(effects, notify{event: core.Event{Kind: core.EventCredentialsChanged, Session: next}})

	if transferring {
		if s.AwaitingAck {
			s.AwaitingAck = false
			s.IdleGen++
			effects = append(effects, stopIdle{})
		}
		s.Sent, s.Total = 0, 0
		effects = append(effects, startTransfer{epoch: s.Epoch, session: next})
	}
	return s, effects
}

func (r reducer) complete(s State) (State, []actor.Effect) {
	effects := []actor.Effect{cancelTransfer{}, stopRotation{}, stopIdle{}}
	if s.Session != nil {
		effects = append(effects, leave{session: *s.Session})
	}
	s.Phase = core.PhaseCompleted
	s.Session = nil
	s.AwaitingAck = false
	if s.Total > 0 {
		s.Sent = s.Total
	}
	effects = append(effects,
		notify{event: core.Event{Kind: core.EventCompleted, Fraction: 1}},
		finish{},
	)
	return s, effects
}

// abort stops timers and the transfer, tells the peer unless it was the peer
// who aborted, releases the subscription and notifies observers.
func (r reducer) abort(s State, reason core.AbortReason, err error, tellPeer bool) (State, []actor.Effect) {
	effects := []actor.Effect{stopRotation{}, stopIdle{}, cancelTransfer{}}
	if s.Session != nil {
		if tellPeer {
			effects = append(effects, sendBestEffort{
				session: *s.Session,
				msg:     core.ErrorSync{Message: string(reason)},
			})
		}
		effects = append(effects, leave{session: *s.Session})
	}
	s.Phase = core.PhaseAborted
	s.Session = nil
	s.AwaitingAck = false
	s.Reason = reason
	s.Err = err
	effects = append(effects,
		notify{event: core.Event{Kind: core.EventAborted, Reason: reason, Err: err}},
		finish{},
	)
	return s, effects
}

// progressStep limits progress notifications to whole-percent steps.
func progressStep(prev, index, count uint32) bool {
	if count == 0 {
		return false
	}
	if index >= count {
		return true
	}
	return uint64(index)*100/uint64(count) > uint64(prev)*100/uint64(count)
}

func wrap(sentinel, cause error) error {
	switch {
	case cause == nil:
		return sentinel
	case errors.Is(cause, sentinel):
		return cause
	default:
		return fmt.Errorf("%w: %w", sentinel, cause)
	}
}
