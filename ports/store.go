package ports

import (
	"context"
	"time"
)

// ChannelRegistry reserves relay channel names so a name is never issued twice
// while its reservation lives.
type ChannelRegistry interface {
	// Reserve claims channel for ttl. It reports false if the channel is
	// already reserved.
	Reserve(ctx context.Context, channel string, ttl time.Duration) (bool, error)
	// IsReserved checks whether a channel is currently reserved.
	IsReserved(ctx context.Context, channel string) (bool, error)
}
