package camera

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Sentinel errors for Open failures.
var (
	// ErrPermissionDenied is returned when the environment refuses capture.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrDeviceUnavailable is returned when no device grants access.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrInvalidConstraints is returned when Constraints fail validation.
	ErrInvalidConstraints = errors.New("camera: invalid constraints")
)

// Frame is an immutable snapshot of pixel data.
// Consumers MUST NOT modify Image.
type Frame struct {
	Image     image.Image
	Width     int
	Height    int
	Timestamp time.Time

	// Seq increases monotonically per handle; 0 means no frame.
	Seq uint64
}

// NewFrame wraps an image as a Frame.
func NewFrame(img image.Image, seq uint64, ts time.Time) Frame {
	b := img.Bounds()
	return Frame{
		Image:     img,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Timestamp: ts,
		Seq:       seq,
	}
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Image == nil || f.Width == 0 || f.Height == 0
}

// Source owns capture devices.
type Source interface {
	// Open acquires a device matching the constraints.
	// Fails with ErrDeviceUnavailable or ErrPermissionDenied.
	Open(ctx context.Context, c Constraints) (*Handle, error)

	// CurrentFrame returns the most recent frame without blocking.
	// It returns false during the cold-start window and after Close.
	CurrentFrame(h *Handle) (Frame, bool)

	// Close releases the device. It is safe to call multiple times.
	Close(h *Handle) error

	// Name returns the backend name (e.g., "gocv", "mock").
	Name() string
}

// device is the backend half of a Handle.
type device interface {
	latest() (Frame, bool)
	close() error
}

// Handle represents ownership of an open capture device.
// It is invalid after release and never yields frames again.
type Handle struct {
	device    string
	facing    Facing
	width     int
	height    int
	frameRate int
	openedAt  time.Time

	dev      device
	once     sync.Once
	closed   atomic.Bool
	closeErr error
}

func newHandle(c Constraints, width, height, fps int, dev device) *Handle {
	return &Handle{
		device:    c.Device,
		facing:    c.Facing,
		width:     width,
		height:    height,
		frameRate: fps,
		openedAt:  time.Now(),
		dev:       dev,
	}
}

// Device returns the device identifier.
func (h *Handle) Device() string { return h.device }

// Facing returns the requested facing direction.
func (h *Handle) Facing() Facing { return h.facing }

// Width returns the negotiated frame width.
func (h *Handle) Width() int { return h.width }

// Height returns the negotiated frame height.
func (h *Handle) Height() int { return h.height }

// FrameRate returns the negotiated frame-rate cap.
func (h *Handle) FrameRate() int { return h.frameRate }

// OpenedAt returns when the device was acquired.
func (h *Handle) OpenedAt() time.Time { return h.openedAt }

// Closed reports whether the handle has been released.
func (h *Handle) Closed() bool { return h.closed.Load() }

func (h *Handle) frame() (Frame, bool) {
	if h == nil || h.closed.Load() {
		return Frame{}, false
	}
	return h.dev.latest()
}

// release closes the backend device exactly once.
func (h *Handle) release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		h.closed.Store(true)
		h.closeErr = h.dev.close()
	})
	return h.closeErr
}
