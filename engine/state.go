package engine

import (
	"time"

	"github.com/layer-3/pairsync/codec"
	"github.com/layer-3/pairsync/core"
)

// Config tunes a pairing engine.
type Config struct {
	// RotationInterval replaces credentials while no peer has joined.
	RotationInterval time.Duration
	// IdleTimeout aborts the pairing if no peer starts a sync in time.
	IdleTimeout time.Duration
	// RequireAck keeps the transfer open after the last chunk until the peer
	// sends end-sync, for at most AckTimeout. With it set, which is the
	// default, a transfer that published every chunk still aborts with
	// core.ReasonPeerTimeout when no end-sync arrives. With it cleared the
	// engine completes once the last chunk is published.
	RequireAck bool
	AckTimeout time.Duration
	// MaxChunkSize overrides the chunk size derived from Budget when positive.
	// It may not exceed what Budget allows.
	MaxChunkSize int
	Budget       codec.Budget
	// NotifyTimeout bounds the best-effort error-sync sent on abort.
	NotifyTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RotationInterval: 30 * time.Second,
		IdleTimeout:      2 * time.Minute,
		RequireAck:       true,
		AckTimeout:       time.Minute,
		Budget:           codec.DefaultBudget(),
		NotifyTimeout:    2 * time.Second,
	}
}

// chunkSize resolves the effective chunk bound.
func (c Config) chunkSize() (int, error) {
	return c.Budget.ChunkSize(c.MaxChunkSize)
}

// State is owned by the engine loop. Sessions are never mutated in place:
// every credential change installs a new value and bumps Epoch, and every
// asynchronous result carries the epoch it was started under.
type State struct {
	Phase   core.Phase
	Session *core.Session
	Epoch   uint64
	// IdleGen identifies the armed idle or acknowledgement timer.
	IdleGen uint64
	// Rekeyed is set once the peer supplied credentials; rotation stops.
	Rekeyed     bool
	Sent        uint32
	Total       uint32
	AwaitingAck bool
	Reason      core.AbortReason
	Err         error
}

// Snapshot is a read-only view of the engine state.
type Snapshot struct {
	Phase    core.Phase
	Session  *core.Session
	Sent     uint32
	Total    uint32
	Progress float64
	// AwaitingAck is set once every chunk is out and the engine waits for
	// end-sync.
	AwaitingAck bool
	Reason      core.AbortReason
	Err         error
}

func (s State) snapshot() Snapshot {
	snap := Snapshot{
		Phase:       s.Phase,
		Sent:        s.Sent,
		Total:       s.Total,
		AwaitingAck: s.AwaitingAck,
		Reason:      s.Reason,
		Err:         s.Err,
	}
	if s.Session != nil {
		session := *s.Session
		snap.Session = &session
	}
	if s.Total > 0 {
		snap.Progress = float64(s.Sent) / float64(s.Total)
	}
	if s.Phase == core.PhaseCompleted {
		snap.Progress = 1
	}
	return snap
}
