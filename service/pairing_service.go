package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/pairsync/adapters/export"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/engine"
	"github.com/layer-3/pairsync/ports"
	"github.com/rs/zerolog"
)

// ErrNoCredentials is returned when a pairing has no bootstrap code to show.
var ErrNoCredentials = errors.New("pairing has no credentials on display")

const lifecycleQueue = 256

// EngineFactory builds an engine for one pairing.
type EngineFactory func(id string, source ports.ExportSource, observers []ports.Observer) (*engine.Engine, error)

// Config tunes the pairing service.
type Config struct {
	Scheme    string
	TokenTTL  time.Duration
	Retention time.Duration
}

// Status is the public view of a pairing.
type Status struct {
	ID        string    `json:"id"`
	Phase     string    `json:"phase"`
	Channel   string    `json:"channel,omitempty"`
	Code      string    `json:"code,omitempty"`
	Progress  float64   `json:"progress"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type pairing struct {
	id         string
	engine     *engine.Engine
	createdAt  time.Time
	finishedAt time.Time
}

type lifecycleItem struct {
	pairingID string
	event     core.Event
}

// PairingService runs pairings on behalf of a local UI
type PairingService struct {
	cfg       Config
	newEngine EngineFactory
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	logger    zerolog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pairings map[string]*pairing

	lifecycle chan lifecycleItem
	closed    bool
	done      chan struct{}
}

// NewPairingService creates a new pairing service. eventPub may be nil.
func NewPairingService(
	cfg Config,
	newEngine EngineFactory,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	logger zerolog.Logger,
) *PairingService {
	if cfg.Scheme == "" {
		cfg.Scheme = core.DefaultScheme
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &PairingService{
		cfg:       cfg,
		newEngine: newEngine,
		tokenizer: tokenizer,
		eventPub:  eventPub,
		logger:    logger.With().Str("component", "pairing_service").Logger(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		pairings:  make(map[string]*pairing),
		lifecycle: make(chan lifecycleItem, lifecycleQueue),
		done:      make(chan struct{}),
	}
	go s.publishLoop()
	return s
}

// Create starts a pairing that will stream payload and returns its ID and a
// viewer token scoped to it.
func (s *PairingService) Create(ctx context.Context, payload []byte) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	s.sweep()

	id := uuid.New().String()
	now := s.now()

	p := &pairing{id: id, createdAt: now}
	observer := ports.ObserverFunc(func(ev core.Event) { s.handleEvent(p, ev) })

	eng, err := s.newEngine(id, export.NewStatic(payload), []ports.Observer{observer})
	if err != nil {
		return "", "", fmt.Errorf("failed to create engine: %w", err)
	}
	p.engine = eng

	token, err := s.tokenizer.ClaimsToToken(&ports.ViewerClaims{
		PairingID: id,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	})
	if err != nil {
		eng.Cancel()
		return "", "", fmt.Errorf("failed to create token: %w", err)
	}

	s.mu.Lock()
	s.pairings[id] = p
	s.mu.Unlock()

	// Engines outlive the request that created them.
	if err := eng.Start(s.ctx); err != nil {
		s.mu.Lock()
		delete(s.pairings, id)
		s.mu.Unlock()
		return "", "", fmt.Errorf("failed to start pairing: %w", err)
	}

	s.logger.Info().Str("pairing_id", id).Int("bytes", len(payload)).Msg("pairing created")
	return id, token, nil
}

// Authorize validates a viewer token
func (s *PairingService) Authorize(token string) (*ports.ViewerClaims, error) {
	claims, err := s.tokenizer.TokenToClaims(token)
	if err != nil {
		return nil, err
	}
	if s.now().After(claims.ExpiresAt) {
		return nil, core.ErrInvalidToken
	}
	return claims, nil
}

// Status reports the state of a pairing.
func (s *PairingService) Status(id string) (*Status, error) {
	p, err := s.get(id)
	if err != nil {
		return nil, err
	}

	snap := p.engine.State()
	st := &Status{
		ID:        id,
		Phase:     snap.Phase.String(),
		Progress:  snap.Progress,
		Reason:    string(snap.Reason),
		CreatedAt: p.createdAt,
	}
	if snap.Session != nil {
		st.Channel = snap.Session.Channel
		st.Code = snap.Session.BootstrapCode(s.cfg.Scheme)
	}
	if snap.Err != nil {
		st.Error = snap.Err.Error()
	}
	return st, nil
}

// BootstrapCode returns the code the companion should scan right now.
func (s *PairingService) BootstrapCode(id string) (string, error) {
	p, err := s.get(id)
	if err != nil {
		return "", err
	}
	session, ok := p.engine.Session()
	if !ok {
		return "", ErrNoCredentials
	}
	return session.BootstrapCode(s.cfg.Scheme), nil
}

// Cancel aborts a pairing and waits until it is terminal.
func (s *PairingService) Cancel(id string) error {
	p, err := s.get(id)
	if err != nil {
		return err
	}
	p.engine.Cancel()
	return nil
}

// Close cancels every pairing and stops publishing lifecycle events once the
// final ones are out.
func (s *PairingService) Close() {
	s.mu.Lock()
	pairings := make([]*pairing, 0, len(s.pairings))
	for _, p := range s.pairings {
		pairings = append(pairings, p)
	}
	s.mu.Unlock()

	for _, p := range pairings {
		p.engine.Cancel()
	}

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.lifecycle)
	}
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

func (s *PairingService) get(id string) (*pairing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pairings[id]
	if !ok {
		return nil, core.ErrPairingNotFound
	}
	return p, nil
}

// handleEvent runs on the engine loop and must not block.
func (s *PairingService) handleEvent(p *pairing, ev core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Kind == core.EventCompleted || ev.Kind == core.EventAborted {
		p.finishedAt = s.now()
	}
	if s.eventPub == nil || s.closed {
		return
	}
	select {
	case s.lifecycle <- lifecycleItem{pairingID: p.id, event: ev}:
	default:
		s.logger.Warn().Str("pairing_id", p.id).Str("kind", string(ev.Kind)).Msg("lifecycle queue full, dropping event")
	}
}

func (s *PairingService) publishLoop() {
	defer close(s.done)
	for item := range s.lifecycle {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.eventPub.PublishLifecycle(ctx, item.pairingID, item.event); err != nil {
			s.logger.Error().Err(err).Str("pairing_id", item.pairingID).Msg("failed to publish lifecycle event")
		}
		cancel()
	}
}

// sweep forgets terminal pairings older than the retention window.
func (s *PairingService) sweep() {
	cutoff := s.now().Add(-s.cfg.Retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pairings {
		if !p.finishedAt.IsZero() && p.finishedAt.Before(cutoff) {
			delete(s.pairings, id)
		}
	}
}
