// Package pairsync pairs a primary device with a companion over an untrusted
// relay and streams an export from one to the other.
package pairsync

import (
	"context"

	"github.com/layer-3/pairsync/companion"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/engine"
)

// Primary represents the sharing side of a pairing
type Primary interface {
	// Start issues credentials and waits for a companion
	Start(ctx context.Context) error

	// Cancel aborts the pairing and returns once it is terminal
	Cancel()

	// RequestCancel aborts the pairing without waiting
	RequestCancel()

	// Events streams lifecycle events until the pairing is terminal
	Events() <-chan core.Event

	// Wait blocks until the pairing completes or aborts
	Wait(ctx context.Context) error
}

// Companion represents the receiving side of a pairing
type Companion interface {
	// ReceiveCode joins the session in a bootstrap code and returns the export
	ReceiveCode(ctx context.Context, code string) ([]byte, error)

	// Rekey moves a running transfer onto fresh credentials
	Rekey(ctx context.Context, session core.Session) error
}

var (
	_ Primary   = (*engine.Engine)(nil)
	_ Companion = (*companion.Receiver)(nil)
)
