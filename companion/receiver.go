// Package companion implements the receiving side of a pairing: it joins the
// channel from a bootstrap code, asks the primary to start, reassembles the
// chunks and confirms receipt.
package companion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/pairsync/codec"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/ports"
	"github.com/rs/zerolog"
)

var (
	// ErrBusy is returned when Receive is called while a transfer is running.
	ErrBusy = errors.New("receiver busy")
	// ErrNotReceiving is returned by Rekey outside of Receive.
	ErrNotReceiving = errors.New("receiver is not receiving")
)

// ProgressFunc is told how many distinct chunks arrived out of total.
type ProgressFunc func(received, total uint32)

// Receiver pulls one export from a primary.
type Receiver struct {
	channel       ports.SecureChannel
	logger        zerolog.Logger
	progress      ProgressFunc
	notifyTimeout time.Duration

	mu      sync.Mutex
	running bool
	rekeys  chan rekeyRequest
}

type rekeyRequest struct {
	session core.Session
	result  chan error
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithProgress registers a progress callback. It runs on the receive loop.
func WithProgress(f ProgressFunc) Option {
	return func(r *Receiver) { r.progress = f }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Receiver) { r.logger = logger }
}

// NewReceiver creates a receiver speaking through channel.
func NewReceiver(channel ports.SecureChannel, opts ...Option) *Receiver {
	r := &Receiver{
		channel:       channel,
		logger:        zerolog.Nop(),
		notifyTimeout: 2 * time.Second,
		rekeys:        make(chan rekeyRequest),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "companion").Logger()
	return r
}

// ReceiveCode parses a bootstrap code and receives on its session.
func (r *Receiver) ReceiveCode(ctx context.Context, code string) ([]byte, error) {
	_, session, err := core.ParseBootstrap(code)
	if err != nil {
		return nil, err
	}
	return r.Receive(ctx, session)
}

// Receive joins session, sends start-sync and blocks until the full payload
// arrived, the primary aborted or ctx ended. On success the primary is sent
// end-sync; on local failure it is sent error-sync.
func (r *Receiver) Receive(ctx context.Context, session core.Session) ([]byte, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrBusy
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	sub, err := r.channel.Join(ctx, session)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = sub.Close()
		_ = r.channel.Leave(session)
	}()

	if err := r.channel.Send(ctx, session, core.StartSync{}); err != nil {
		return nil, err
	}
	r.logger.Debug().Str("channel", session.Channel).Msg("start-sync sent")

	var asm codec.Reassembler
	for {
		select {
		case <-ctx.Done():
			r.notifyPeer(session, core.ErrorSync{Message: string(core.ReasonUserCancelled)})
			return nil, fmt.Errorf("%w: %w", core.ErrUserCancelled, ctx.Err())

		case req := <-r.rekeys:
			next, err := r.channel.Join(ctx, req.session)
			if err != nil {
				req.result <- err
				continue
			}
			info := core.ConnectionInfo{Channel: req.session.Channel, Key: req.session.Key}
			if err := r.channel.Send(ctx, session, info); err != nil {
				_ = next.Close()
				_ = r.channel.Leave(req.session)
				req.result <- err
				continue
			}
			_ = sub.Close()
			_ = r.channel.Leave(session)

			// Whatever arrived on the old channel is discarded; the primary
			// restarts from the first chunk.
			session, sub = req.session, next
			asm.Reset()
			r.logger.Debug().Str("channel", session.Channel).Msg("re-keyed")
			req.result <- nil

		case msg, ok := <-sub.Messages():
			if !ok {
				return nil, fmt.Errorf("%w: subscription closed", core.ErrTransportFailure)
			}
			switch m := msg.(type) {
			case core.SyncingData:
				if err := asm.Add(codec.Chunk{Index: m.ChunkIndex, Count: m.ChunkCount, Data: m.Payload}); err != nil {
					r.notifyPeer(session, core.ErrorSync{Message: err.Error()})
					return nil, err
				}
				if r.progress != nil {
					r.progress(uint32(asm.Received()), asm.Count())
				}
				if !asm.Complete() {
					continue
				}
				payload, err := asm.Payload()
				if err != nil {
					return nil, err
				}
				if err := r.channel.Send(ctx, session, core.EndSync{}); err != nil {
					return nil, err
				}
				r.logger.Info().Int("bytes", len(payload)).Msg("export received")
				return payload, nil

			case core.ErrorSync:
				return nil, fmt.Errorf("%w: %s", core.ErrPeerAborted, m.Message)
			}
			// Everything else on the channel is our own traffic echoed back.
		}
	}
}

// Rekey moves the running transfer onto session. The primary is told over the
// current channel and restarts the transfer from the first chunk.
func (r *Receiver) Rekey(ctx context.Context, session core.Session) error {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return ErrNotReceiving
	}

	req := rekeyRequest{session: session, result: make(chan error, 1)}
	select {
	case r.rekeys <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Receiver) notifyPeer(session core.Session, msg core.ErrorSync) {
	ctx, cancel := context.WithTimeout(context.Background(), r.notifyTimeout)
	defer cancel()
	if err := r.channel.Send(ctx, session, msg); err != nil {
		r.logger.Warn().Err(err).Msg("failed to notify peer")
	}
}
