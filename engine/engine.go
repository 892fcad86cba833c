// Package engine drives the primary side of a pairing: it issues and rotates
// credentials, waits for a companion, streams the export in chunks and tears
// everything down on completion or abort.
package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/layer-3/pairsync/actor"
	"github.com/layer-3/pairsync/clock"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
	"github.com/rs/zerolog"
)

// mailboxSize leaves room for relayed chunk echoes while the loop is busy.
const mailboxSize = 1024

// ErrStopped is returned by Wait when the engine was shut down before it
// reached a terminal phase.
var ErrStopped = errors.New("engine stopped")

// Deps are the collaborators of an Engine.
type Deps struct {
	Channel   ports.SecureChannel
	Generator ports.CredentialGenerator
	Export    ports.ExportSource
	// Clock defaults to clock.Real.
	Clock     clock.Clock
	Observers []ports.Observer
	Logger    zerolog.Logger
}

// Engine is a single pairing attempt. It is not reusable once terminal.
type Engine struct {
	actor   *actor.Actor[State]
	rt      *runtime
	logger  zerolog.Logger
	started atomic.Bool
}

// New builds an engine in PhaseIdle.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Channel == nil || deps.Generator == nil || deps.Export == nil {
		return nil, errors.New("engine: channel, generator and export source are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	chunkSize, err := cfg.chunkSize()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		rt:     newRuntime(cfg, chunkSize, deps),
		logger: deps.Logger,
	}
	e.actor = actor.New(State{}, newReducer(cfg), e.rt,
		actor.WithHooks(actor.Hooks[State]{
			OnTransition: e.logTransition,
			AfterEffects: func(s State) {
				if s.Phase.Terminal() {
					e.actor.Stop()
				}
			},
		}),
		actor.WithMailboxSize[State](mailboxSize),
	)
	e.actor.Start()
	return e, nil
}

// Start issues the first credentials and begins waiting for a peer. Cancelling
// ctx cancels the pairing.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return core.ErrAlreadyStarted
	}
	if err := e.actor.Send(ctx, startCmd{}); err != nil {
		return err
	}
	go func() {
		select {
		case <-ctx.Done():
			e.Cancel()
		case <-e.rt.finished:
		}
	}()
	return nil
}

// Cancel aborts the pairing with core.ReasonUserCancelled and returns once the
// engine is terminal. No chunk is published after Cancel returns.
//
// Cancel must not be called from an Observer: observers run on the engine
// loop, which Cancel waits for. Use RequestCancel there.
func (e *Engine) Cancel() {
	if err := e.actor.Send(context.Background(), cancelCmd{}); err != nil {
		return
	}
	select {
	case <-e.rt.finished:
	case <-e.actor.Done():
	}
}

// RequestCancel asks the engine to abort with core.ReasonUserCancelled without
// waiting for it to become terminal. It is safe to call from an Observer.
func (e *Engine) RequestCancel() {
	go func() {
		_ = e.actor.Send(context.Background(), cancelCmd{})
	}()
}

// Wait blocks until the pairing is terminal. It returns nil on completion and
// the abort error otherwise.
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-e.rt.finished:
	case <-e.actor.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s := e.actor.State()
	switch s.Phase {
	case core.PhaseCompleted:
		return nil
	case core.PhaseAborted:
		return s.Err
	default:
		return ErrStopped
	}
}

// Events yields lifecycle events and closes after the terminal one. Progress
// is reported in whole-percent steps; slow readers may miss intermediate
// progress events.
func (e *Engine) Events() <-chan core.Event { return e.rt.events }

// Done closes once the engine is terminal.
func (e *Engine) Done() <-chan struct{} { return e.rt.finished }

// State returns a snapshot of the engine.
func (e *Engine) State() Snapshot { return e.actor.State().snapshot() }

// Session returns the credentials currently on display, if any.
func (e *Engine) Session() (core.Session, bool) {
	s := e.actor.State()
	if s.Session == nil {
		return core.Session{}, false
	}
	return *s.Session, true
}

func (e *Engine) logTransition(prev, next State, _ actor.Input) {
	if prev.Phase == next.Phase {
		if prev.Epoch != next.Epoch && next.Session != nil {
			e.logger.Debug().
				Str("channel", next.Session.Channel).
				Uint64("epoch", next.Epoch).
				Bool("rekeyed", next.Rekeyed).
				Msg("credentials changed")
		}
		return
	}
	if next.Phase == core.PhaseAborted {
		e.logger.Warn().
			Str("from", prev.Phase.String()).
			Str("to", next.Phase.String()).
			Str("reason", string(next.Reason)).
			Err(next.Err).
			Msg("pairing aborted")
		return
	}
	e.logger.Info().
		Str("from", prev.Phase.String()).
		Str("to", next.Phase.String()).
		Msg("pairing phase changed")
}
