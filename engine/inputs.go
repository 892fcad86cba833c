package engine

import (
	"time"

	"github.com/layer-3/pairsync/actor"
	"github.com/layer-3/pairsync/core"
)

type startCmd struct{ actor.InputBase }

type cancelCmd struct{ actor.InputBase }

type credentialsIssued struct {
	actor.InputBase
	epoch   uint64
	session core.Session
}

type credentialsFailed struct {
	actor.InputBase
	epoch uint64
	err   error
}

type rotationDue struct {
	actor.InputBase
	epoch uint64
}

type idleExpired struct {
	actor.InputBase
	gen uint64
}

type subscribeFailed struct {
	actor.InputBase
	epoch uint64
	err   error
}

type subscriptionClosed struct {
	actor.InputBase
	epoch uint64
}

type messageReceived struct {
	actor.InputBase
	epoch uint64
	msg   core.ControlMessage
	at    time.Time
}

type chunkSent struct {
	actor.InputBase
	epoch uint64
	index uint32
	count uint32
}

type transferFinished struct {
	actor.InputBase
	epoch uint64
}

type transferFailed struct {
	actor.InputBase
	epoch  uint64
	reason core.AbortReason
	err    error
}
