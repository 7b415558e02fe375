package scan

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/teslashibe/go-badgescan/pkg/camera"
	"github.com/teslashibe/go-badgescan/pkg/decode"
)

// DefaultHistory is the number of sessions kept for status polling.
const DefaultHistory = 32

// SessionHandle identifies a session started through a Manager.
type SessionHandle string

// ChainFactory builds a fresh decoder chain for each session.
type ChainFactory func() *decode.Chain

// StatusHook observes transitions of every managed session.
type StatusHook func(SessionHandle, Outcome)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithManagerMetrics records metrics for every session and chain.
func WithManagerMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithHistory bounds the number of remembered sessions.
func WithHistory(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.history = n
		}
	}
}

// WithConstraints reads camera constraints at each StartScan.
func WithConstraints(fn func() camera.Constraints) ManagerOption {
	return func(m *Manager) { m.constraints = fn }
}

// WithSessionOptions applies extra options to every session.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.sessionOpts = append(m.sessionOpts, opts...) }
}

// Manager is the boundary used by the rest of the application: it starts,
// stops and reports on sessions by handle. The camera is exclusive, so at
// most one session is active at a time.
type Manager struct {
	cfg         Config
	source      camera.Source
	newChain    ChainFactory
	logger      *slog.Logger
	base        *slog.Logger
	metrics     *Metrics
	history     int
	constraints func() camera.Constraints
	sessionOpts []Option

	mu        sync.RWMutex
	sessions  map[SessionHandle]*Session
	order     []SessionHandle
	active    SessionHandle
	lastChain *decode.Chain
	hooks     []StatusHook
}

// NewManager creates a manager over a camera source.
func NewManager(cfg Config, source camera.Source, newChain ChainFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg,
		source:   source,
		newChain: newChain,
		logger:   slog.Default(),
		history:  DefaultHistory,
		sessions: make(map[SessionHandle]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.base = m.logger
	m.logger = m.logger.With("component", "scan.manager")
	return m
}

// OnStatus registers a hook for every session transition.
func (m *Manager) OnStatus(fn StatusHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// StartScan starts a new session and returns its handle. A finished
// session still inside its grace delay is flushed first; an active one
// yields ErrScanInProgress. It may be called from a result or error callback.
func (m *Manager) StartScan(ctx context.Context, onResult ResultFunc, onError ErrorFunc) (SessionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		prev, ok := m.sessions[m.active]
		if !ok {
			break
		}
		state := prev.Status().State
		if state.Active() {
			return "", ErrScanInProgress
		}
		// Stop closes a held camera before returning. Only a stopped session
		// can still be inside a driver open, so that is the one case to wait
		// for; Success and Error sessions may be the caller's own goroutine.
		prev.Stop()
		if state != StateIdle || sessionFinished(prev) {
			break
		}
		m.mu.Unlock()
		err := awaitSession(ctx, prev)
		m.mu.Lock()
		if err != nil {
			return "", err
		}
	}

	cfg := m.cfg
	if m.constraints != nil {
		cfg.Constraints = m.constraints()
	}

	chain := m.newChain()
	if m.metrics != nil {
		chain.SetObserver(m.metrics)
	}

	handle := SessionHandle(uuid.NewString())
	hooks := append([]StatusHook(nil), m.hooks...)
	opts := append([]Option{
		WithLogger(m.base.With("session", string(handle))),
		WithMetrics(m.metrics),
		WithStatusHook(func(o Outcome) {
			for _, fn := range hooks {
				fn(handle, o)
			}
		}),
	}, m.sessionOpts...)

	s := NewSession(cfg, m.source, chain, opts...)
	if err := s.Start(context.WithoutCancel(ctx), onResult, onError); err != nil {
		return "", err
	}

	m.sessions[handle] = s
	m.order = append(m.order, handle)
	m.active = handle
	m.lastChain = chain
	m.pruneLocked()

	m.logger.Info("session started", "session", string(handle))
	return handle, nil
}

// StopScan stops a session. Stopping a finished session is a no-op.
func (m *Manager) StopScan(h SessionHandle) error {
	m.mu.RLock()
	s, ok := m.sessions[h]
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownSession
	}
	s.Stop()
	return nil
}

// CurrentStatus returns the outcome of a session.
func (m *Manager) CurrentStatus(h SessionHandle) (Outcome, error) {
	m.mu.RLock()
	s, ok := m.sessions[h]
	m.mu.RUnlock()
	if !ok {
		return Outcome{}, ErrUnknownSession
	}
	return s.Status(), nil
}

// Session returns the session behind a handle.
func (m *Manager) Session(h SessionHandle) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[h]
	return s, ok
}

// Active returns the handle of the most recent session if it is still active.
func (m *Manager) Active() (SessionHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[m.active]
	if !ok || !s.Status().State.Active() {
		return "", false
	}
	return m.active, true
}

// Decoders describes the capabilities of the most recent chain. Before
// any scan it initializes a throwaway chain to report availability.
func (m *Manager) Decoders(ctx context.Context) []decode.CapabilityInfo {
	m.mu.RLock()
	chain := m.lastChain
	m.mu.RUnlock()

	if chain == nil {
		chain = m.newChain()
		defer chain.Close()
		_ = chain.Init(ctx)
	}
	return chain.Capabilities()
}

// Close stops every session and waits for them to release the camera.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		if err := awaitSession(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func sessionFinished(s *Session) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

func awaitSession(ctx context.Context, s *Session) error {
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pruneLocked drops the oldest finished sessions beyond the history bound.
func (m *Manager) pruneLocked() {
	for len(m.order) > m.history {
		oldest := m.order[0]
		if oldest == m.active {
			return
		}
		if s := m.sessions[oldest]; s != nil && !sessionFinished(s) {
			return
		}
		delete(m.sessions, oldest)
		m.order = m.order[1:]
	}
}
