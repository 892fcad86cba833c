// Package actor is a small single-goroutine event loop: a pure reducer owns
// the state, and a runtime interprets the effects it returns and feeds results
// back as inputs.
package actor

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned when input is sent to a stopped actor.
var ErrStopped = errors.New("actor stopped")

// Input is an item delivered to the mailbox.
type Input interface {
	isActorInput()
}

// Effect is a declarative side effect produced by a reducer.
type Effect interface {
	isActorEffect()
}

// InputBase can be embedded to satisfy Input.
type InputBase struct{}

func (InputBase) isActorInput() {}

// EffectBase can be embedded to satisfy Effect.
type EffectBase struct{}

func (EffectBase) isActorEffect() {}

// ReducerFunc is a pure state transition: no I/O, no clocks, no randomness.
type ReducerFunc[S any] func(state S, input Input) (next S, effects []Effect)

// Runtime interprets effects on the loop goroutine. Blocking work must be
// started asynchronously and report back through emit.
type Runtime interface {
	HandleEffects(ctx context.Context, effects []Effect, emit func(Input))
	Stop()
}

// Hooks observe the loop. All are optional.
type Hooks[S any] struct {
	OnTransition func(prev, next S, input Input)
	// AfterEffects runs once the runtime has handled an input's effects.
	AfterEffects func(state S)
}

// Actor runs the loop for state S.
type Actor[S any] struct {
	reduce  ReducerFunc[S]
	runtime Runtime
	hooks   Hooks[S]

	mu     sync.Mutex
	state  S
	inbox  chan Input
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Option configures an Actor.
type Option[S any] func(*Actor[S])

// WithHooks attaches hooks.
func WithHooks[S any](hooks Hooks[S]) Option[S] {
	return func(a *Actor[S]) { a.hooks = hooks }
}

// WithMailboxSize sets the mailbox buffer.
func WithMailboxSize[S any](n int) Option[S] {
	return func(a *Actor[S]) {
		if n > 0 {
			a.inbox = make(chan Input, n)
		}
	}
}

// New creates an actor.
func New[S any](initial S, reducer ReducerFunc[S], runtime Runtime, opts ...Option[S]) *Actor[S] {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor[S]{
		reduce:  reducer,
		runtime: runtime,
		state:   initial,
		inbox:   make(chan Input, 256),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the loop. It is idempotent.
func (a *Actor[S]) Start() {
	a.once.Do(func() { go a.loop() })
}

// Stop cancels the loop and the runtime. It is safe to call repeatedly.
func (a *Actor[S]) Stop() {
	a.cancel()
	if a.runtime != nil {
		a.runtime.Stop()
	}
}

// Done closes when the loop exits.
func (a *Actor[S]) Done() <-chan struct{} { return a.done }

// Send delivers input, waiting for mailbox room. It fails once the actor is
// stopped or ctx ends.
func (a *Actor[S]) Send(ctx context.Context, input Input) error {
	if input == nil {
		return nil
	}
	select {
	case <-a.ctx.Done():
		return ErrStopped
	default:
	}
	select {
	case a.inbox <- input:
		return nil
	case <-a.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a snapshot of the current state.
func (a *Actor[S]) State() S {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Actor[S]) loop() {
	defer close(a.done)

	emit := func(in Input) {
		_ = a.Send(a.ctx, in)
	}

	for {
		select {
		case <-a.ctx.Done():
			return
		case in := <-a.inbox:
			a.mu.Lock()
			prev := a.state
			a.mu.Unlock()

			next, effects := a.reduce(prev, in)

			a.mu.Lock()
			a.state = next
			a.mu.Unlock()

			if a.hooks.OnTransition != nil {
				a.hooks.OnTransition(prev, next, in)
			}
			if a.runtime != nil && len(effects) > 0 {
				a.runtime.HandleEffects(a.ctx, effects, emit)
			}
			if a.hooks.AfterEffects != nil {
				a.hooks.AfterEffects(next)
			}
		}
	}
}
