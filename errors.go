package pairsync

import "github.com/layer-3/pairsync/core"

// Errors a caller may want to match with errors.Is.
var (
	// ErrTransportFailure is returned when the relay failed
	ErrTransportFailure = core.ErrTransportFailure

	// ErrPeerTimeout is returned when the other device never showed up or never confirmed
	ErrPeerTimeout = core.ErrPeerTimeout

	// ErrUserCancelled is returned when the pairing was cancelled locally
	ErrUserCancelled = core.ErrUserCancelled

	// ErrPeerAborted is returned when the other device aborted
	ErrPeerAborted = core.ErrPeerAborted

	// ErrExportFailed is returned when the export could not be produced
	ErrExportFailed = core.ErrExportFailed

	// ErrInvalidBootstrap is returned for a malformed pairing code
	ErrInvalidBootstrap = core.ErrInvalidBootstrap
)
