package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/layer-3/pairsync/actor"
	"github.com/layer-3/pairsync/clock"
	"github.com/layer-3/pairsync/codec"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
	"github.com/rs/zerolog"
)

const eventBuffer = 256

// runtime interprets reducer effects. HandleEffects runs on the loop
// goroutine, so anything that reports back does so from its own goroutine.
type runtime struct {
	cfg       Config
	chunkSize int
	channel   ports.SecureChannel
	generator ports.CredentialGenerator
	export    ports.ExportSource
	clock     clock.Clock
	observers []ports.Observer
	logger    zerolog.Logger

	events   chan core.Event
	finished chan struct{}

	mu       sync.Mutex
	rotation clock.Timer
	idle     clock.Timer
	subs     map[string]ports.SecureSubscription
	transfer *transfer
	payload  []byte
	fetched  bool
	closed   bool
}

func newRuntime(cfg Config, chunkSize int, deps Deps) *runtime {
	return &runtime{
		cfg:       cfg,
		chunkSize: chunkSize,
		channel:   deps.Channel,
		generator: deps.Generator,
		export:    deps.Export,
		clock:     deps.Clock,
		observers: deps.Observers,
		logger:    deps.Logger,
		events:    make(chan core.Event, eventBuffer),
		finished:  make(chan struct{}),
		subs:      make(map[string]ports.SecureSubscription),
	}
}

var _ actor.Runtime = (*runtime)(nil)

func (r *runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case generateCredentials:
			go func() {
				session, err := r.generator.Generate(ctx)
				if err != nil {
					emit(credentialsFailed{epoch: e.epoch, err: err})
					return
				}
				if session.CreatedAt.IsZero() {
					session.CreatedAt = r.clock.Now()
				}
				emit(credentialsIssued{epoch: e.epoch, session: session})
			}()

		case join:
			r.join(ctx, e, emit)

		case leave:
			r.leave(e.session)

		case armRotation:
			r.mu.Lock()
			stopTimer(r.rotation)
			r.rotation = r.clock.AfterFunc(e.after, func() { emit(rotationDue{epoch: e.epoch}) })
			r.mu.Unlock()

		case stopRotation:
			r.mu.Lock()
			stopTimer(r.rotation)
			r.rotation = nil
			r.mu.Unlock()

		case armIdle:
			r.mu.Lock()
			stopTimer(r.idle)
			r.idle = r.clock.AfterFunc(e.after, func() { emit(idleExpired{gen: e.gen}) })
			r.mu.Unlock()

		case stopIdle:
			r.mu.Lock()
			stopTimer(r.idle)
			r.idle = nil
			r.mu.Unlock()

		case startTransfer:
			r.stopTransfer()
			t := newTransfer(ctx)
			r.mu.Lock()
			r.transfer = t
			r.mu.Unlock()
			go r.runTransfer(t, e, emit)

		case cancelTransfer:
			r.stopTransfer()

		case sendBestEffort:
			r.sendBestEffort(ctx, e)

		case notify:
			r.notify(e.event)

		case finish:
			r.finish()

		default:
			r.logger.Warn().Str("effect", fmt.Sprintf("%T", eff)).Msg("unhandled effect")
		}
	}
}

// Stop releases everything the runtime still holds. It must not block on the
// loop goroutine.
func (r *runtime) Stop() {
	r.stopTransfer()
	r.mu.Lock()
	stopTimer(r.rotation)
	stopTimer(r.idle)
	r.rotation, r.idle = nil, nil
	subs := r.subs
	r.subs = make(map[string]ports.SecureSubscription)
	r.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
}

func (r *runtime) join(ctx context.Context, e join, emit func(actor.Input)) {
	sub, err := r.channel.Join(ctx, e.session)
	if err != nil {
		r.logger.Error().Err(err).Str("channel", e.session.Channel).Msg("failed to join channel")
		go emit(subscribeFailed{epoch: e.epoch, err: err})
		return
	}

	r.mu.Lock()
	r.subs[e.session.Channel] = sub
	r.mu.Unlock()

	r.logger.Debug().Str("channel", e.session.Channel).Uint64("epoch", e.epoch).Msg("joined channel")

	go func() {
		for msg := range sub.Messages() {
			emit(messageReceived{epoch: e.epoch, msg: msg, at: r.clock.Now()})
		}
		emit(subscriptionClosed{epoch: e.epoch})
	}()
}

func (r *runtime) leave(session core.Session) {
	r.mu.Lock()
	sub := r.subs[session.Channel]
	delete(r.subs, session.Channel)
	r.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			r.logger.Warn().Err(err).Str("channel", session.Channel).Msg("failed to close subscription")
		}
	}
	if err := r.channel.Leave(session); err != nil {
		r.logger.Warn().Err(err).Str("channel", session.Channel).Msg("failed to leave channel")
	}
}

func (r *runtime) runTransfer(t *transfer, e startTransfer, emit func(actor.Input)) {
	defer close(t.done)

	payload, err := r.exportPayload(t.ctx)
	if err != nil {
		if t.ctx.Err() == nil {
			emit(transferFailed{epoch: e.epoch, reason: core.ReasonExportFailed, err: err})
		}
		return
	}

	chunks, err := codec.Split(payload, r.chunkSize)
	if err != nil {
		emit(transferFailed{epoch: e.epoch, reason: core.ReasonExportFailed, err: err})
		return
	}

	logger := r.logger.With().
		Str("channel", e.session.Channel).
		Int("chunks", len(chunks)).
		Int("bytes", len(payload)).
		Logger()
	logger.Debug().Msg("transfer started")

	for _, c := range chunks {
		msg := core.SyncingData{Payload: c.Data, ChunkIndex: c.Index, ChunkCount: c.Count}
		sent, err := t.publish(func() error { return r.channel.Send(t.ctx, e.session, msg) })
		if !sent {
			logger.Debug().Uint32("chunk", c.Index).Msg("transfer stopped")
			return
		}
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			emit(transferFailed{epoch: e.epoch, reason: core.ReasonTransportFailure, err: err})
			return
		}
		emit(chunkSent{epoch: e.epoch, index: c.Index, count: c.Count})
	}

	logger.Debug().Msg("transfer sent")
	emit(transferFinished{epoch: e.epoch})
}

// exportPayload fetches the payload once and reuses it when a re-key
// restarts the transfer.
func (r *runtime) exportPayload(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	if r.fetched {
		payload := r.payload
		r.mu.Unlock()
		return payload, nil
	}
	r.mu.Unlock()

	payload, err := r.export.FetchExportPayload(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.payload, r.fetched = payload, true
	r.mu.Unlock()
	return payload, nil
}

func (r *runtime) stopTransfer() {
	r.mu.Lock()
	t := r.transfer
	r.transfer = nil
	r.mu.Unlock()
	if t != nil {
		t.stop()
	}
}

func (r *runtime) sendBestEffort(ctx context.Context, e sendBestEffort) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.NotifyTimeout)
	defer cancel()
	if err := r.channel.Send(sendCtx, e.session, e.msg); err != nil {
		r.logger.Warn().Err(err).Str("event", string(e.msg.Event())).Msg("failed to notify peer")
	}
}

func (r *runtime) notify(event core.Event) {
	for _, o := range r.observers {
		o.HandleEvent(event)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- event:
	default:
		r.logger.Warn().Str("kind", string(event.Kind)).Msg("event buffer full, dropping event")
	}
}

func (r *runtime) finish() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.payload = nil
	r.mu.Unlock()
	close(r.finished)
}

// transfer owns one run of the chunk loop. stop cancels it and waits for any
// publish in flight, after which no further chunk is published.
type transfer struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	gate    sync.Mutex
	stopped bool
}

func newTransfer(parent context.Context) *transfer {
	ctx, cancel := context.WithCancel(parent)
	return &transfer{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (t *transfer) publish(send func() error) (bool, error) {
	t.gate.Lock()
	defer t.gate.Unlock()
	if t.stopped {
		return false, nil
	}
	return true, send()
}

func (t *transfer) stop() {
	t.cancel()
	t.gate.Lock()
	t.stopped = true
	t.gate.Unlock()
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
