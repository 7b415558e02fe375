package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-badgescan/pkg/camera"
	"github.com/teslashibe/go-badgescan/pkg/decode"
)

// Detector decodes a single frame. *decode.Chain implements it.
type Detector interface {
	TryDetect(frame camera.Frame) (decode.RawPayload, bool, error)
}

// LoopConfig tunes the sampling loop.
type LoopConfig struct {
	// DecodeEvery attempts a decode on every Nth presentation tick.
	DecodeEvery int `json:"decode_every"`

	// Scale downsamples frames before decoding; values >= 1 disable it.
	Scale float64 `json:"scale"`

	// RefreshHz is the presentation cadence.
	RefreshHz int `json:"refresh_hz"`
}

// DefaultLoopConfig decodes every second tick of a 60 Hz cadence at half size.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		DecodeEvery: 2,
		Scale:       0.5,
		RefreshHz:   DefaultRefreshHz,
	}
}

// Validate checks the loop configuration.
func (c LoopConfig) Validate() []string {
	var errs []string
	if c.DecodeEvery < 1 {
		errs = append(errs, "decode_every must be at least 1")
	}
	if c.Scale <= 0 {
		errs = append(errs, "scale must be positive")
	}
	if c.RefreshHz < 0 || c.RefreshHz > 1000 {
		errs = append(errs, "refresh_hz must be between 0 and 1000")
	}
	return errs
}

// Loop pulls frames at a bounded rate and hands detections to a callback.
type Loop struct {
	cfg      LoopConfig
	newPacer func() Pacer
	logger   *slog.Logger
	metrics  *Metrics

	// OnFirstFrame is called once, before the first frame is decoded.
	OnFirstFrame func(camera.Frame)
}

// NewLoop creates a loop paced by a refresh ticker.
func NewLoop(cfg LoopConfig, logger *slog.Logger, metrics *Metrics) *Loop {
	if cfg.DecodeEvery < 1 {
		cfg.DecodeEvery = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:      cfg,
		newPacer: func() Pacer { return NewRefreshPacer(cfg.RefreshHz) },
		logger:   logger.With("component", "scan.loop"),
		metrics:  metrics,
	}
}

// WithPacer replaces the presentation cadence.
func (l *Loop) WithPacer(fn func() Pacer) *Loop {
	l.newPacer = fn
	return l
}

// Run samples src until shouldContinue reports false, ctx is cancelled,
// or onDetect accepts a payload. It never touches the source after
// shouldContinue has returned false.
func (l *Loop) Run(
	ctx context.Context,
	src camera.Source,
	h *camera.Handle,
	det Detector,
	onDetect func(decode.RawPayload) bool,
	shouldContinue func() bool,
) error {
	pacer := l.newPacer()
	defer pacer.Stop()

	var (
		tick    uint64
		lastSeq uint64
		seen    bool
		every   = uint64(l.cfg.DecodeEvery)
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pacer.C():
		}

		tick++
		if tick%every != 0 {
			continue
		}
		if !shouldContinue() {
			return nil
		}

		frame, ok := src.CurrentFrame(h)
		if !ok || frame.Empty() {
			continue
		}
		if seen && frame.Seq != 0 && frame.Seq <= lastSeq {
			l.metrics.ObserveFrame("duplicate")
			continue
		}
		lastSeq = frame.Seq

		if !seen {
			seen = true
			if l.OnFirstFrame != nil {
				l.OnFirstFrame(frame)
			}
		}

		payload, hit, err := l.attempt(det, downsampleFrame(frame, l.cfg.Scale))
		if err != nil {
			l.metrics.ObserveFrame("error")
			l.logger.Warn("decode attempt failed", "seq", frame.Seq, "error", err)
			continue
		}
		if !hit {
			l.metrics.ObserveFrame("miss")
			continue
		}

		l.metrics.ObserveFrame("decoded")
		if onDetect(payload) {
			return nil
		}
	}
}

func (l *Loop) attempt(det Detector, frame camera.Frame) (p decode.RawPayload, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, ok, err = decode.RawPayload{}, false, &decode.TransientError{
				Capability: "loop",
				Err:        fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return det.TryDetect(frame)
}
