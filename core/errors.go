package core

import "errors"

var (
	ErrTransportFailure = errors.New("relay transport failure")
	ErrPeerTimeout      = errors.New("peer did not respond in time")
	ErrUserCancelled    = errors.New("pairing cancelled")
	ErrPeerAborted      = errors.New("peer aborted the sync")
	ErrExportFailed     = errors.New("export payload unavailable")
	ErrInvalidKey       = errors.New("invalid session key")
	ErrInvalidBootstrap = errors.New("invalid bootstrap code")
	ErrInvalidMessage   = errors.New("invalid control message")
	ErrAlreadyStarted   = errors.New("pairing already started")
	ErrPairingNotFound  = errors.New("pairing not found")
	ErrInvalidToken     = errors.New("invalid token")
)
