// ABOUTME: Session registry: creates, reuses, renegotiates, and tears down client sessions.
// ABOUTME: Guarantees at most one live session per id and exactly one runtime per session.

package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shivsinghin/Voice-Assistant/internal/transport"
)

// ErrShuttingDown indicates the manager no longer accepts new sessions.
var ErrShuttingDown = errors.New("session manager shutting down")

// ErrSessionNotFound indicates no live session has the requested id.
var ErrSessionNotFound = errors.New("session not found")

// ErrTooManySessions indicates the configured session limit was reached.
var ErrTooManySessions = errors.New("too many sessions")

// disconnectTimeout bounds a single transport disconnect during Remove.
const disconnectTimeout = 5 * time.Second

// Runtime is the per-session agent. Run is called exactly once per session
// and should return when ctx is cancelled or the connection closes.
type Runtime interface {
	Run(ctx context.Context, sessionID string, conn transport.Connection) error
}

// RuntimeFunc adapts a function to Runtime.
type RuntimeFunc func(ctx context.Context, sessionID string, conn transport.Connection) error

func (f RuntimeFunc) Run(ctx context.Context, sessionID string, conn transport.Connection) error {
	return f(ctx, sessionID, conn)
}

// Config contains configuration options for the Manager.
type Config struct {
	Factory     transport.Factory
	Runtime     Runtime
	Logger      *slog.Logger
	MaxSessions int // 0 means unlimited
}

// Manager owns the map of live sessions.
type Manager struct {
	factory     transport.Factory
	runtime     Runtime
	logger      *slog.Logger
	maxSessions int

	baseCtx    context.Context
	baseCancel context.CancelFunc
	runtimes   sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
	pending  int // slots reserved by create while negotiating
	closing  bool
}

// NewManager creates a new Manager instance.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		factory:     cfg.Factory,
		runtime:     cfg.Runtime,
		logger:      logger.With("component", "sessions"),
		maxSessions: cfg.MaxSessions,
		baseCtx:     ctx,
		baseCancel:  cancel,
		sessions:    make(map[string]*Session),
	}
}

// OpenOrReuse negotiates a session. If id names a live session, the offer
// renegotiates that session's existing connection and the same id is
// returned. Otherwise a new session with a freshly minted id is created and
// its runtime is started. An id that is unknown or already closed is not an
// error; the caller simply gets a new session.
func (m *Manager) OpenOrReuse(ctx context.Context, id string, offer transport.Offer) (transport.Answer, string, error) {
	if err := offer.Validate(); err != nil {
		return transport.Answer{}, "", err
	}

	if id != "" {
		if s := m.lookup(id); s != nil {
			answer, reused, err := s.renegotiate(ctx, offer)
			if err != nil {
				m.logger.Warn("renegotiation failed", "session_id", id, "error", err)
				return transport.Answer{}, "", err
			}
			if reused {
				m.logger.Info("session renegotiated", "session_id", id, "renegotiations", s.Renegotiations())
				return answer, id, nil
			}
		}
		m.logger.Info("unknown session id, starting a new session", "requested_id", id)
	}

	return m.create(ctx, offer)
}

func (m *Manager) create(ctx context.Context, offer transport.Offer) (transport.Answer, string, error) {
	// Sessions plus in-flight negotiations never exceed maxSessions.
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return transport.Answer{}, "", ErrShuttingDown
	}
	if m.maxSessions > 0 && len(m.sessions)+m.pending >= m.maxSessions {
		m.mu.Unlock()
		return transport.Answer{}, "", fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.maxSessions)
	}
	m.pending++
	m.mu.Unlock()

	id := uuid.New().String()
	conn := m.factory.NewConnection(id)
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		state:     StateNegotiating,
		done:      make(chan struct{}),
	}

	if err := conn.Initialize(ctx, offer); err != nil {
		m.release()
		_ = conn.Disconnect(context.WithoutCancel(ctx))
		return transport.Answer{}, "", fmt.Errorf("initializing connection: %w", err)
	}

	m.mu.Lock()
	m.pending--
	if m.closing {
		m.mu.Unlock()
		_ = conn.Disconnect(context.WithoutCancel(ctx))
		return transport.Answer{}, "", ErrShuttingDown
	}
	s.ctx, s.cancel = context.WithCancel(m.baseCtx)
	s.state = StateActive
	m.sessions[id] = s
	total := len(m.sessions)
	m.runtimes.Add(1)
	m.mu.Unlock()

	conn.OnClosed(func() { m.Remove(id) })

	m.logger.Info("=== SESSION OPENED ===",
		"session_id", id,
		"total_sessions", total,
	)

	go m.run(s)
	return conn.Answer(), id, nil
}

// release gives back a slot reserved by create.
func (m *Manager) release() {
	m.mu.Lock()
	m.pending--
	m.mu.Unlock()
}

func (m *Manager) run(s *Session) {
	defer m.runtimes.Done()
	defer close(s.done)

	if m.runtime != nil {
		if err := m.runtime.Run(s.ctx, s.ID, s.conn); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("session runtime exited with error", "session_id", s.ID, "error", err)
		}
	} else {
		<-s.ctx.Done()
	}
	m.Remove(s.ID)
}

func (m *Manager) lookup(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	if s := m.lookup(id); s != nil {
		return s, nil
	}
	return nil, ErrSessionNotFound
}

// Remove closes and forgets a session. Unknown ids and repeated calls are no-ops.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	total := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := s.close(ctx); err != nil {
		m.logger.Warn("error disconnecting session", "session_id", id, "error", err)
	}

	m.logger.Info("=== SESSION CLOSED ===",
		"session_id", id,
		"total_sessions", total,
	)
}

// ShutdownAll stops accepting sessions, disconnects every live session
// concurrently, waits for their runtimes to exit, and empties the map.
// Errors from individual disconnects are joined; every session is closed
// regardless.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	m.logger.Info("shutting down sessions", "count", len(live))

	errs := make([]error, len(live))
	var wg sync.WaitGroup
	for i, s := range live {
		wg.Go(func() {
			if err := s.close(ctx); err != nil {
				errs[i] = fmt.Errorf("session %s: %w", s.ID, err)
			}
		})
	}
	wg.Wait()

	waited := make(chan struct{})
	go func() {
		m.runtimes.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for session runtimes: %w", ctx.Err()))
	}

	m.mu.Lock()
	clear(m.sessions)
	m.mu.Unlock()
	m.baseCancel()

	return errors.Join(errs...)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns a snapshot of live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Info) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}
