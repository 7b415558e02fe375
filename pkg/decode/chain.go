package decode

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/go-badgescan/pkg/camera"
)

// Observer receives one call per capability attempt.
type Observer interface {
	ObserveDetect(capability string, d time.Duration, hit bool, err error)
}

// CapabilityInfo describes a registered capability for status endpoints.
type CapabilityInfo struct {
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type entry struct {
	dec         Capability
	priority    int
	order       int
	initialized bool
	available   bool
	initErr     error
}

// Chain tries capabilities in descending priority until one decodes the frame.
type Chain struct {
	mu       sync.RWMutex
	entries  []*entry
	active   []*entry
	ready    bool
	logger   *slog.Logger
	observer Observer
}

// NewChain creates an empty chain.
func NewChain(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		logger: logger.With("component", "decode.chain"),
	}
}

// SetObserver installs an attempt observer (typically metrics).
func (c *Chain) SetObserver(o Observer) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// Register adds a capability. Higher priority runs first; ties keep
// registration order.
func (c *Chain) Register(dec Capability, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, &entry{
		dec:      dec,
		priority: priority,
		order:    len(c.entries),
	})
}

// RegisterFunc registers a bare detect function.
func (c *Chain) RegisterFunc(name string, fn DetectFunc, priority int) {
	c.Register(Func(name, fn), priority)
}

// Init initializes every capability not yet initialized. Failures are
// recorded and the capability is skipped from then on. Returns
// ErrNoDecoderAvailable when nothing is usable.
func (c *Chain) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, e := range c.entries {
		if e.initialized {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		e.initialized = true
		if err := safeInit(ctx, e.dec); err != nil {
			e.initErr = err
			errs = append(errs, fmt.Errorf("%s: %w", e.dec.Name(), err))
			c.logger.Warn("decoder unavailable",
				"capability", e.dec.Name(),
				"error", err,
			)
			continue
		}
		e.available = true
		c.logger.Debug("decoder ready",
			"capability", e.dec.Name(),
			"priority", e.priority,
		)
	}

	c.active = make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.available {
			c.active = append(c.active, e)
		}
	}
	sort.SliceStable(c.active, func(i, j int) bool {
		if c.active[i].priority != c.active[j].priority {
			return c.active[i].priority > c.active[j].priority
		}
		return c.active[i].order < c.active[j].order
	})
	c.ready = true

	if len(c.active) == 0 {
		if len(errs) == 0 {
			return ErrNoDecoderAvailable
		}
		return fmt.Errorf("%w: %w", ErrNoDecoderAvailable, &ChainError{Errors: errs})
	}
	return nil
}

// TryDetect runs the frame through the available capabilities. The first
// hit wins. Capability errors fall through to the next capability and are
// only reported, as a TransientError, when nothing decoded the frame.
func (c *Chain) TryDetect(frame camera.Frame) (RawPayload, bool, error) {
	c.mu.RLock()
	if !c.ready {
		c.mu.RUnlock()
		return RawPayload{}, false, ErrNotInitialized
	}
	active := c.active
	observer := c.observer
	c.mu.RUnlock()

	var lastErr *TransientError
	for i, e := range active {
		start := time.Now()
		p, ok, err := safeDetect(e.dec, frame)
		if observer != nil {
			observer.ObserveDetect(e.dec.Name(), time.Since(start), ok && err == nil, err)
		}

		if err != nil {
			lastErr = &TransientError{Capability: e.dec.Name(), Err: err}
			c.logger.Debug("decoder failed, trying next",
				"capability", e.dec.Name(),
				"index", i,
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}

		if p.Decoder == "" {
			p.Decoder = e.dec.Name()
		}
		if p.DetectedAt.IsZero() {
			p.DetectedAt = time.Now()
		}
		return p, true, nil
	}

	if lastErr != nil {
		return RawPayload{}, false, lastErr
	}
	return RawPayload{}, false, nil
}

// Available returns the number of usable capabilities.
func (c *Chain) Available() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.active)
}

// Capabilities lists registered capabilities in registration order.
func (c *Chain) Capabilities() []CapabilityInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]CapabilityInfo, 0, len(c.entries))
	for _, e := range c.entries {
		info := CapabilityInfo{
			Name:      e.dec.Name(),
			Priority:  e.priority,
			Available: e.available,
		}
		if e.initErr != nil {
			info.Error = e.initErr.Error()
		}
		infos = append(infos, info)
	}
	return infos
}

// Close closes all capabilities.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for _, e := range c.entries {
		if err := e.dec.Close(); err != nil {
			lastErr = err
		}
	}
	c.active = nil
	c.ready = false
	return lastErr
}

func safeInit(ctx context.Context, dec Capability) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panic: %v", r)
		}
	}()
	return dec.Init(ctx)
}

func safeDetect(dec Capability, frame camera.Frame) (p RawPayload, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, ok, err = RawPayload{}, false, fmt.Errorf("detect panic: %v", r)
		}
	}()
	return dec.Detect(frame)
}
