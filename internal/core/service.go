package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gridhost/internal/resolve"
)

var (
	// ErrSessionNotFound is returned for an unknown or reaped session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned when a session stops while a request waits.
	ErrSessionClosed = errors.New("session closed")
	// ErrUnknownMode is returned when creating a session for an unregistered mode.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrTooManySessions is returned when MaxSessions are already open.
	ErrTooManySessions = errors.New("too many open sessions")
	// ErrNoCatalog is returned by lookups and loads when no backend is configured.
	ErrNoCatalog = errors.New("no catalog configured")
)

// ServiceConfig holds what every session shares. Zero values take defaults.
type ServiceConfig struct {
	// Store answers lookups and loads. Nil runs without a catalog: lookups
	// fail (rows stay as typed) and Load returns ErrNoCatalog.
	Store resolve.Store

	// Limiter bounds backend calls across all sessions.
	Limiter *resolve.Limiter

	Lookup      resolve.Options
	CacheTTL    time.Duration
	Debounce    time.Duration
	Reconciler  Options
	MaxSessions int

	Logger *slog.Logger
}

// Service owns every open editing session.
type Service struct {
	cfg    ServiceConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// SessionInfo describes an open session.
type SessionInfo struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	Tenant      string    `json:"tenant"`
	CreatedAt   time.Time `json:"createdAt"`
	LastActive  time.Time `json:"lastActive"`
	Subscribers int       `json:"subscribers"`
}

// NewService creates a new Service instance.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = resolve.NewLimiter(resolve.DefaultMaxConcurrentLookups, resolve.DefaultMaxWaitTime)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = resolve.DefaultCacheTTL
	}
	if cfg.Reconciler.BulkThreshold <= 0 {
		cfg.Reconciler.BulkThreshold = cfg.Lookup.BulkThreshold
	}
	return &Service{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}
}

// ListModes returns every registered mode.
func (s *Service) ListModes() []ModeDefinition {
	return All()
}

// Limiter returns the shared lookup limiter.
func (s *Service) Limiter() *resolve.Limiter { return s.cfg.Limiter }

func (s *Service) resolver() resolve.Resolver {
	if s.cfg.Store == nil {
		return resolve.ResolverFunc(func(context.Context, []string, string, string) (resolve.Result, error) {
			return resolve.Result{}, ErrNoCatalog
		})
	}
	return s.cfg.Store
}

// CreateSession opens a session for mode on behalf of tenant.
func (s *Service) CreateSession(ctx context.Context, modeKey, tenant string) (*Session, error) {
	mode, ok := Get(modeKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, modeKey)
	}

	id := uuid.New().String()
	logger := s.logger
	if ip := GetIPAddressFromContext(ctx); ip != "" {
		logger = logger.With("client_ip", ip)
	}

	var catalog resolve.Catalog
	if s.cfg.Store != nil {
		catalog = s.cfg.Store
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	pipeline := resolve.NewPipeline(
		s.resolver(),
		resolve.NewCache(s.cfg.CacheTTL),
		s.cfg.Limiter,
		s.cfg.Lookup,
		logger.With("session_id", id),
	)

	sess := NewSession(id, SessionConfig{
		Mode:       mode,
		Tenant:     tenant,
		Debounce:   s.cfg.Debounce,
		Reconciler: s.cfg.Reconciler,
		Pipeline:   pipeline,
		Catalog:    catalog,
		Logger:     logger,
	})
	s.sessions[id] = sess

	logger.Info("session created",
		"session_id", id,
		"mode", mode.Key,
		"tenant", tenant,
		"user_agent", GetUserAgentFromContext(ctx),
	)
	return sess, nil
}

// Session returns an open session.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// CloseSession stops a session and forgets it.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Close()
	return nil
}

// ListSessions describes every open session, oldest first.
func (s *Service) ListSessions() []SessionInfo {
	s.mu.RLock()
	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		infos = append(infos, SessionInfo{
			ID:          sess.ID,
			Mode:        sess.Mode,
			Tenant:      sess.Tenant,
			CreatedAt:   sess.CreatedAt,
			LastActive:  sess.LastActive(),
			Subscribers: sess.Subscribers(),
		})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ReapIdle closes sessions that have no subscriber and have been inactive
// for longer than maxIdle. Returns how many were closed.
func (s *Service) ReapIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		if sess.Subscribers() == 0 && sess.LastActive().Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
	}
	return len(idle)
}

// Shutdown closes every session, then waits for lookups still holding a
// limiter slot to finish or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range all {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			sess.Close()
		}(sess)
	}
	wg.Wait()

	s.logger.Info("sessions closed", "count", len(all))
	return s.cfg.Limiter.WaitForDrain(ctx)
}
