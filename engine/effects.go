package engine

import (
	"time"

	"github.com/layer-3/pairsync/actor"
	"github.com/layer-3/pairsync/core"
)

type generateCredentials struct {
	actor.EffectBase
	epoch uint64
}

type join struct {
	actor.EffectBase
	epoch   uint64
	session core.Session
}

type leave struct {
	actor.EffectBase
	session core.Session
}

type armRotation struct {
	actor.EffectBase
	epoch uint64
	after time.Duration
}

type stopRotation struct{ actor.EffectBase }

type armIdle struct {
	actor.EffectBase
	gen   uint64
	after time.Duration
}

type stopIdle struct{ actor.EffectBase }

type startTransfer struct {
	actor.EffectBase
	epoch   uint64
	session core.Session
}

type cancelTransfer struct{ actor.EffectBase }

type sendBestEffort struct {
	actor.EffectBase
	session core.Session
	msg     core.ControlMessage
}

type notify struct {
	actor.EffectBase
	event core.Event
}

// finish is always the last effect of a terminal transition.
type finish struct{ actor.EffectBase }
