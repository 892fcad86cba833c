package core

import "fmt"

// Phase is the lifecycle position of a pairing engine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingPeer
	PhaseTransferring
	PhaseCompleted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingPeer:
		return "awaiting_peer"
	case PhaseTransferring:
		return "transferring"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAborted
}

// AbortReason classifies why a pairing ended in PhaseAborted.
type AbortReason string

const (
	ReasonNone             AbortReason = ""
	ReasonTransportFailure AbortReason = "transport_failure"
	ReasonPeerTimeout      AbortReason = "peer_timeout"
	ReasonUserCancelled    AbortReason = "user_cancelled"
	ReasonPeerAborted      AbortReason = "peer_aborted"
	ReasonExportFailed     AbortReason = "export_failed"
)

// Err maps the reason to its sentinel error.
func (r AbortReason) Err() error {
	switch r {
	case ReasonTransportFailure:
		return ErrTransportFailure
	case ReasonPeerTimeout:
		return ErrPeerTimeout
	case ReasonUserCancelled:
		return ErrUserCancelled
	case ReasonPeerAborted:
		return ErrPeerAborted
	case ReasonExportFailed:
		return ErrExportFailed
	default:
		return nil
	}
}

// EventKind identifies a lifecycle notification.
type EventKind string

const (
	EventCredentialsChanged EventKind = "credentials_changed"
	EventSyncStarted        EventKind = "sync_started"
	EventSyncProgress       EventKind = "sync_progress"
	EventCompleted          EventKind = "completed"
	EventAborted            EventKind = "aborted"
)

// Event is emitted to observers of a pairing engine.
type Event struct {
	Kind EventKind
	// Session is set on EventCredentialsChanged.
	Session Session
	// Fraction is set on EventSyncProgress, in [0, 1].
	Fraction float64
	// Reason and Err are set on EventAborted.
	Reason AbortReason
	Err    error
}
