package relay

import (
	"context"
	"sync"
)

// subscription is the scoped handle shared by the relay backends. Closing it
// cancels the backend feed, waits for the pump to exit and detaches it from
// its owner.
type subscription struct {
	out      chan []byte
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	onClose  func()
	closeErr error
}

func newSubscription(cancel context.CancelFunc, buffer int) *subscription {
	return &subscription{
		out:    make(chan []byte, buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Messages implements ports.Subscription.
func (s *subscription) Messages() <-chan []byte { return s.out }

// Close implements ports.Subscription.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}

// deliver forwards payload unless the subscription is shutting down.
func (s *subscription) deliver(ctx context.Context, payload []byte) bool {
	select {
	case s.out <- payload:
		return true
	case <-ctx.Done():
		return false
	}
}

// registry tracks at most one live subscription per channel.
type registry struct {
	mu   sync.Mutex
	subs map[string]*subscription
}

func newRegistry() registry {
	return registry{subs: make(map[string]*subscription)}
}

// swap installs sub for channel and returns the subscription it replaces.
func (r *registry) swap(channel string, sub *subscription) *subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.subs[channel]
	r.subs[channel] = sub
	sub.onClose = func() { r.remove(channel, sub) }
	return prev
}

func (r *registry) remove(channel string, sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[channel] == sub {
		delete(r.subs, channel)
	}
}

func (r *registry) get(channel string) *subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[channel]
}

func (r *registry) all() []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}
