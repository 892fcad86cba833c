package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/pairsync/ports"
)

// MemoryStore is an in-memory ChannelRegistry for single-process use and tests.
type MemoryStore struct {
	reserved map[string]time.Time
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reserved: make(map[string]time.Time),
		now:      time.Now,
	}
}

var _ ports.ChannelRegistry = (*MemoryStore)(nil)

// Reserve claims a channel until ttl elapses.
func (s *MemoryStore) Reserve(ctx context.Context, channel string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, exists := s.reserved[channel]; exists && now.Before(expiry) {
		return false, nil
	}
	expiryTime := now.Add(ttl)
	s.reserved[channel] = expiryTime

	// Drop the record once it lapses, unless it was re-reserved meanwhile.
	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if stored, exists := s.reserved[channel]; exists && !stored.After(expiryTime) {
			delete(s.reserved, channel)
		}
	})

	return true, nil
}

// IsReserved checks whether a channel is currently reserved.
func (s *MemoryStore) IsReserved(ctx context.Context, channel string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.reserved[channel]
	if !exists {
		return false, nil
	}
	return s.now().Before(expiryTime), nil
}
