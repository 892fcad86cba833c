package actor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/pairsync/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	actor.InputBase
	n int
}

type echoEffect struct {
	actor.EffectBase
	n int
}

type recordingRuntime struct {
	mu      sync.Mutex
	effects []actor.Effect
}

func (r *recordingRuntime) HandleEffects(_ context.Context, effects []actor.Effect, _ func(actor.Input)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effects...)
}

func (r *recordingRuntime) Stop() {}

func (r *recordingRuntime) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.effects)
}

func TestActorProcessesInputsSequentially(t *testing.T) {
	rt := &recordingRuntime{}
	reducer := func(state int, input actor.Input) (int, []actor.Effect) {
		in, ok := input.(addInput)
		if !ok {
			return state, nil
		}
		return state + in.n, []actor.Effect{echoEffect{n: in.n}}
	}

	a := actor.New[int](0, reducer, rt)
	a.Start()
	defer a.Stop()

	for i := 1; i <= 5; i++ {
		require.NoError(t, a.Send(context.Background(), addInput{n: i}))
	}

	require.Eventually(t, func() bool { return a.State() == 15 && rt.count() == 5 }, 2*time.Second, 5*time.Millisecond)
}

func TestActorSendAfterStop(t *testing.T) {
	a := actor.New[int](0, func(s int, _ actor.Input) (int, []actor.Effect) { return s, nil }, nil)
	a.Start()
	a.Stop()

	<-a.Done()
	assert.ErrorIs(t, a.Send(context.Background(), addInput{n: 1}), actor.ErrStopped)
}

func TestActorMailboxSize(t *testing.T) {
	a := actor.New[int](0, func(s int, _ actor.Input) (int, []actor.Effect) { return s, nil }, nil,
		actor.WithMailboxSize[int](2))
	defer a.Stop()

	require.NoError(t, a.Send(context.Background(), addInput{n: 1}))
	require.NoError(t, a.Send(context.Background(), addInput{n: 2}))

	// Not started, so the third input has nowhere to go.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Send(ctx, addInput{n: 3}), context.DeadlineExceeded)
}
