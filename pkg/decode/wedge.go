package decode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-badgescan/pkg/camera"
)

// Wedge reads from a hardware barcode scanner that emits one line per scan
// (serial/CDC-ACM or a keyboard-wedge tty). The scanner drives itself, so
// Detect ignores the frame and returns the most recent unread line.
type Wedge struct {
	name   string
	open   func() (io.ReadCloser, error)
	logger *slog.Logger

	mu      sync.Mutex
	rc      io.ReadCloser
	pending *RawPayload
	done    chan struct{}
}

// NewWedge creates a wedge capability reading from a device path.
func NewWedge(path string, logger *slog.Logger) *Wedge {
	return newWedge("wedge", func() (io.ReadCloser, error) {
		return os.OpenFile(path, os.O_RDONLY, 0)
	}, logger)
}

// NewWedgeReader creates a wedge capability over an already-open stream.
func NewWedgeReader(name string, rc io.ReadCloser, logger *slog.Logger) *Wedge {
	return newWedge(name, func() (io.ReadCloser, error) { return rc, nil }, logger)
}

func newWedge(name string, open func() (io.ReadCloser, error), logger *slog.Logger) *Wedge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wedge{
		name:   name,
		open:   open,
		logger: logger.With("component", "decode.wedge"),
	}
}

// Name returns the capability name.
func (w *Wedge) Name() string {
	return w.name
}

// Init opens the device and starts the line reader.
func (w *Wedge) Init(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rc != nil {
		return nil
	}

	rc, err := w.open()
	if err != nil {
		return fmt.Errorf("open scanner: %w", err)
	}
	w.rc = rc
	w.done = make(chan struct{})
	go w.readLoop(rc, w.done)
	return nil
}

func (w *Wedge) readLoop(r io.Reader, done chan struct{}) {
	defer close(done)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p := RawPayload{
			Text:       line,
			Format:     "line",
			Decoder:    w.name,
			DetectedAt: time.Now(),
		}
		// Only the latest scan is kept
		w.mu.Lock()
		w.pending = &p
		w.mu.Unlock()
	}

	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
		w.logger.Warn("scanner read failed", "capability", w.name, "error", err)
	}
}

// Detect hands out the pending line once.
func (w *Wedge) Detect(_ camera.Frame) (RawPayload, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending == nil {
		return RawPayload{}, false, nil
	}
	p := *w.pending
	w.pending = nil
	return p, true, nil
}

// Close closes the device and waits for the reader to exit.
func (w *Wedge) Close() error {
	w.mu.Lock()
	rc, done := w.rc, w.done
	w.rc = nil
	w.pending = nil
	w.mu.Unlock()

	if rc == nil {
		return nil
	}
	err := rc.Close()
	<-done
	return err
}
