package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-badgescan/pkg/camera"
	"github.com/teslashibe/go-badgescan/pkg/decode"
	"github.com/teslashibe/go-badgescan/pkg/identifier"
)

// DefaultGraceDelay keeps the camera open briefly after Success so the
// operator sees the confirmation on the live preview.
const DefaultGraceDelay = time.Second

// Decoder is the decoding side of a session. *decode.Chain implements it.
type Decoder interface {
	Detector
	Init(ctx context.Context) error
	Close() error
}

// ResultFunc receives the identifier of a successful scan. It runs on the
// session goroutine once sampling has stopped, before the grace delay; it
// may start a new scan through the Manager.
type ResultFunc func(identifier.ID)

// ErrorFunc receives a fatal session error.
type ErrorFunc func(kind ErrorKind, err error)

// Config holds session settings.
type Config struct {
	Constraints camera.Constraints `json:"constraints"`
	Loop        LoopConfig         `json:"loop"`
	Cooldown    time.Duration      `json:"cooldown"`
	GraceDelay  time.Duration      `json:"grace_delay"`
}

// DefaultConfig returns the standard scanning configuration.
func DefaultConfig() Config {
	return Config{
		Constraints: camera.DefaultConstraints(),
		Loop:        DefaultLoopConfig(),
		Cooldown:    DefaultCooldown,
		GraceDelay:  DefaultGraceDelay,
	}
}

// Validate checks the configuration and returns any problems.
func (c Config) Validate() []string {
	errs := c.Constraints.Validate()
	errs = append(errs, c.Loop.Validate()...)
	if c.Cooldown < 0 {
		errs = append(errs, "cooldown must not be negative")
	}
	if c.GraceDelay < 0 {
		errs = append(errs, "grace_delay must not be negative")
	}
	return errs
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records session metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces the clock used by the deduplication gate.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithStatusHook observes every state transition. Hooks run while the
// session lock is held and must not call back into the session.
func WithStatusHook(fn func(Outcome)) Option {
	return func(s *Session) { s.hooks = append(s.hooks, fn) }
}

// WithPacer replaces the loop cadence.
func WithPacer(fn func() Pacer) Option {
	return func(s *Session) { s.pacer = fn }
}

// Session drives one scan from camera acquisition to a single result.
// Success and Error are terminal; Stop moves any other state to Idle.
type Session struct {
	cfg     Config
	source  camera.Source
	decoder Decoder
	gate    *Gate
	logger  *slog.Logger
	base    *slog.Logger
	metrics *Metrics
	now     func() time.Time
	hooks   []func(Outcome)
	pacer   func() Pacer

	mu        sync.Mutex
	outcome   Outcome
	started   bool
	startedAt time.Time
	handle    *camera.Handle
	releaseMu sync.Mutex
	cancel    context.CancelFunc
	onResult  ResultFunc
	onError   ErrorFunc
	done      chan struct{}
	closeDone sync.Once
}

// NewSession creates an idle session. The session owns decoder and closes
// it when the session ends.
func NewSession(cfg Config, source camera.Source, decoder Decoder, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg,
		source:  source,
		decoder: decoder,
		gate:    NewGate(cfg.Cooldown),
		logger:  slog.Default(),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.base = s.logger
	s.logger = s.base.With("component", "scan.session")
	s.outcome = Outcome{State: StateIdle, Since: time.Now()}
	return s
}

// Start moves Idle to Initializing and begins acquiring the camera in the
// background. ctx bounds the whole session. onResult fires at most once,
// on Success; onError fires at most once, on a fatal error.
func (s *Session) Start(ctx context.Context, onResult ResultFunc, onError ErrorFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrSessionUsed
	}
	s.started = true
	s.startedAt = time.Now()
	s.onResult = onResult
	s.onError = onError
	s.gate.Reset()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.setLocked(Outcome{State: StateInitializing})
	s.metrics.SessionStarted()
	s.logger.Info("scan starting",
		"source", s.source.Name(),
		"device", s.cfg.Constraints.Device,
	)

	go s.run(runCtx)
	return nil
}

// Stop forces any non-terminal state to Idle and releases the camera.
// On a terminal session it releases the camera without waiting out the
// grace delay. Stop never blocks on the device; use Done to wait.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started {
		s.started = true
		s.mu.Unlock()
		s.finish()
		return
	}
	if s.outcome.State.Active() {
		s.setLocked(Outcome{State: StateIdle, Reason: "stopped"})
		s.logger.Info("scan stopped")
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.release()
}

// Status returns the current outcome.
func (s *Session) Status() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Done is closed once the session has ended and released the camera.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run(ctx context.Context) {
	defer s.finish()
	defer s.closeDecoder()

	if err := s.decoder.Init(ctx); err != nil {
		if ctx.Err() != nil {
			s.abandon()
			return
		}
		s.fail(KindNoDecoderAvailable, err)
		return
	}

	h, err := s.source.Open(ctx, s.cfg.Constraints)
	if err != nil {
		if ctx.Err() != nil {
			s.abandon()
			return
		}
		kind := KindOf(err)
		if kind != KindPermissionDenied {
			kind = KindDeviceUnavailable
		}
		s.fail(kind, err)
		return
	}

	s.mu.Lock()
	if s.outcome.State != StateInitializing {
		// Stopped while the device was opening.
		s.mu.Unlock()
		s.closeHandle(h)
		return
	}
	s.handle = h
	s.mu.Unlock()
	defer s.release()

	s.logger.Debug("camera open",
		"device", h.Device(),
		"width", h.Width(),
		"height", h.Height(),
		"fps", h.FrameRate(),
	)

	loop := NewLoop(s.cfg.Loop, s.base, s.metrics)
	if s.pacer != nil {
		loop.WithPacer(s.pacer)
	}
	loop.OnFirstFrame = func(f camera.Frame) {
		s.mu.Lock()
		if s.outcome.State == StateInitializing {
			s.setLocked(Outcome{State: StateScanning})
			s.logger.Info("scanning", "first_frame", f.Seq)
		}
		s.mu.Unlock()
	}

	err = loop.Run(ctx, s.source, h, s.decoder, s.handleDetection, s.shouldContinue)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("sampling loop ended", "error", err)
	}

	if s.abandon() != StateSuccess {
		return
	}
	s.deliver()
	if s.cfg.GraceDelay > 0 {
		t := time.NewTimer(s.cfg.GraceDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
}

// deliver hands the accepted identifier to the result callback.
func (s *Session) deliver() {
	s.mu.Lock()
	id, onResult := s.outcome.Identifier, s.onResult
	s.mu.Unlock()
	if onResult != nil {
		onResult(id)
	}
}

// handleDetection validates a payload and performs the Success transition.
// It returns true when the loop should stop.
func (s *Session) handleDetection(p decode.RawPayload) bool {
	id, err := identifier.Extract(p.Text)
	if err != nil {
		s.metrics.ObserveRejection(KindOf(err).String())
		s.logger.Debug("payload rejected",
			"decoder", p.Decoder,
			"payload", p.String(),
			"error", err,
		)
		return false
	}

	now := s.now()

	s.mu.Lock()
	if s.outcome.State != StateScanning {
		s.mu.Unlock()
		return true
	}
	if !s.gate.Accept(now) {
		s.mu.Unlock()
		s.metrics.ObserveRejection("cooldown")
		s.logger.Debug("detection suppressed", "identifier", id.String())
		return false
	}
	s.setLocked(Outcome{State: StateSuccess, Identifier: id})
	s.mu.Unlock()

	s.logger.Info("scan succeeded",
		"identifier", id.String(),
		"decoder", p.Decoder,
		"format", p.Format,
	)
	return true
}

func (s *Session) shouldContinue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome.State.Active()
}

// abandon moves an active session to Idle when its context ends without
// Stop, and returns the resulting state.
func (s *Session) abandon() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome.State.Active() {
		s.setLocked(Outcome{State: StateIdle, Reason: "cancelled"})
	}
	return s.outcome.State
}

func (s *Session) fail(kind ErrorKind, err error) {
	s.mu.Lock()
	if !s.outcome.State.Active() {
		s.mu.Unlock()
		return
	}
	s.setLocked(Outcome{State: StateError, Error: kind, Reason: err.Error()})
	onError := s.onError
	s.mu.Unlock()

	s.logger.Error("scan failed", "kind", kind.String(), "error", err)
	if onError != nil {
		onError(kind, err)
	}
}

// release closes the held handle, if any. Safe to call repeatedly; a
// concurrent caller returns only after the device is closed.
func (s *Session) release() {
	s.releaseMu.Lock()
	defer s.releaseMu.Unlock()

	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h != nil {
		s.closeHandle(h)
	}
}

func (s *Session) closeHandle(h *camera.Handle) {
	if err := s.source.Close(h); err != nil {
		s.logger.Warn("camera close failed", "device", h.Device(), "error", err)
	}
}

func (s *Session) closeDecoder() {
	if err := s.decoder.Close(); err != nil {
		s.logger.Warn("decoder close failed", "error", err)
	}
}

func (s *Session) finish() {
	s.closeDone.Do(func() {
		s.mu.Lock()
		o, startedAt, ran := s.outcome, s.startedAt, !s.startedAt.IsZero()
		s.mu.Unlock()
		if ran {
			s.metrics.ObserveSession(o, time.Since(startedAt))
			s.metrics.SessionEnded()
		}
		close(s.done)
	})
}

// setLocked records a transition and notifies hooks. Caller holds s.mu.
func (s *Session) setLocked(o Outcome) {
	if o.Since.IsZero() {
		o.Since = time.Now()
	}
	s.outcome = o
	for _, fn := range s.hooks {
		fn(o)
	}
}
