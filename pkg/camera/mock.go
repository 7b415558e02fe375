package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a scripted Source for tests and demo mode.
// Every CurrentFrame call after the cold-start window yields a new frame.
type MockSource struct {
	// OpenErr, if set, is returned from Open.
	OpenErr error

	// OpenDelay simulates a slow device; it respects ctx.
	OpenDelay time.Duration

	// OpenGate, if set, blocks Open until it is closed, ignoring ctx.
	// It simulates a driver call that cannot be interrupted.
	OpenGate chan struct{}

	// OpenStarted, if set, is closed when Open is first entered.
	OpenStarted chan struct{}

	// ColdFrames is the number of CurrentFrame calls that return no frame.
	ColdFrames int

	// Width and Height of generated frames (default 64x48).
	Width, Height int

	// FrameFunc generates the image for a frame; nil yields a flat gray image.
	FrameFunc func(seq uint64) image.Image

	opens    atomic.Int64
	closes   atomic.Int64
	releases atomic.Int64
	pulls    atomic.Int64

	mu          sync.Mutex
	handles     []*Handle
	openStarted sync.Once
}

// NewMockSource creates a mock source producing 64x48 frames.
func NewMockSource() *MockSource {
	return &MockSource{Width: 64, Height: 48}
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Open returns a handle backed by a synthetic frame generator.
func (m *MockSource) Open(ctx context.Context, c Constraints) (*Handle, error) {
	if m.OpenStarted != nil {
		m.openStarted.Do(func() { close(m.OpenStarted) })
	}
	if m.OpenGate != nil {
		<-m.OpenGate
	}

	if m.OpenDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.OpenDelay):
		}
	}

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}

	m.opens.Add(1)

	w, h := m.Width, m.Height
	if w == 0 || h == 0 {
		w, h = 64, 48
	}

	dev := &mockDevice{src: m, width: w, height: h, cold: int64(m.ColdFrames)}
	handle := newHandle(c, w, h, c.FrameRate, dev)

	m.mu.Lock()
	m.handles = append(m.handles, handle)
	m.mu.Unlock()

	return handle, nil
}

// CurrentFrame returns the next synthetic frame.
func (m *MockSource) CurrentFrame(h *Handle) (Frame, bool) {
	return h.frame()
}

// Close releases the handle.
func (m *MockSource) Close(h *Handle) error {
	m.closes.Add(1)
	return h.release()
}

// Opens returns the number of successful Open calls.
func (m *MockSource) Opens() int { return int(m.opens.Load()) }

// Closes returns the number of Close calls, including redundant ones.
func (m *MockSource) Closes() int { return int(m.closes.Load()) }

// Releases returns the number of devices actually released.
func (m *MockSource) Releases() int { return int(m.releases.Load()) }

// Pulls returns the number of frames handed out.
func (m *MockSource) Pulls() int { return int(m.pulls.Load()) }

// Handles returns every handle opened so far.
func (m *MockSource) Handles() []*Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Handle(nil), m.handles...)
}

type mockDevice struct {
	src    *MockSource
	width  int
	height int
	cold   int64

	calls atomic.Int64
	seq   atomic.Uint64
}

func (d *mockDevice) latest() (Frame, bool) {
	if d.calls.Add(1) <= d.cold {
		return Frame{}, false
	}

	seq := d.seq.Add(1)
	d.src.pulls.Add(1)

	var img image.Image
	if d.src.FrameFunc != nil {
		img = d.src.FrameFunc(seq)
	} else {
		g := image.NewGray(image.Rect(0, 0, d.width, d.height))
		for i := range g.Pix {
			g.Pix[i] = 128
		}
		img = g
	}
	return NewFrame(img, seq, time.Now()), true
}

func (d *mockDevice) close() error {
	d.src.releases.Add(1)
	return nil
}

// SolidImage returns a flat image of the given color.
func SolidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
