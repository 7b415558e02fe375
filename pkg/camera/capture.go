package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// CaptureSource opens V4L2/AVFoundation devices and stream URLs through OpenCV.
type CaptureSource struct {
	logger *slog.Logger

	// checkAccess classifies access failures before OpenCV hides them.
	checkAccess func(device string) error
}

// NewCaptureSource creates a gocv-backed Source.
func NewCaptureSource(logger *slog.Logger) *CaptureSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureSource{
		logger:      logger.With("component", "camera.capture"),
		checkAccess: checkDeviceAccess,
	}
}

// Name returns "gocv".
func (s *CaptureSource) Name() string {
	return "gocv"
}

type openResult struct {
	vc  *gocv.VideoCapture
	err error
}

// Open acquires the device. OpenCV's open call cannot be interrupted, so a
// cancelled ctx abandons the wait and the late capture is closed on arrival.
func (s *CaptureSource) Open(ctx context.Context, c Constraints) (*Handle, error) {
	if errs := c.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConstraints, strings.Join(errs, "; "))
	}

	if err := s.checkAccess(c.Device); err != nil {
		return nil, err
	}

	results := make(chan openResult, 1)
	go func() {
		vc, err := gocv.OpenVideoCapture(deviceArg(c.Device))
		results <- openResult{vc: vc, err: err}
	}()

	var res openResult
	select {
	case <-ctx.Done():
		go func() {
			if late := <-results; late.vc != nil {
				late.vc.Close()
			}
		}()
		return nil, ctx.Err()
	case res = <-results:
	}

	if res.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, c.Device, res.err)
	}
	vc := res.vc
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s: not opened", ErrDeviceUnavailable, c.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.IdealWidth))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.IdealHeight))
	vc.Set(gocv.VideoCaptureFPS, float64(c.FrameRate))

	width := int(vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(vc.Get(gocv.VideoCaptureFrameHeight))
	fps := int(vc.Get(gocv.VideoCaptureFPS))
	if fps <= 0 || fps > c.FrameRate {
		fps = c.FrameRate
	}

	if !c.Satisfies(width, height) {
		vc.Close()
		return nil, fmt.Errorf("%w: %s: negotiated %dx%d below minimum %dx%d",
			ErrDeviceUnavailable, c.Device, width, height, c.MinWidth, c.MinHeight)
	}
	if w, h := c.Clamp(width, height); w != width || h != height {
		s.logger.Warn("device exceeds maximum resolution",
			"device", c.Device, "width", width, "height", height,
			"max_width", c.MaxWidth, "max_height", c.MaxHeight)
	}

	dev := newCaptureDevice(vc, fps, s.logger)
	go dev.pump()

	s.logger.Info("camera opened",
		"device", c.Device,
		"width", width,
		"height", height,
		"fps", fps,
	)

	return newHandle(c, width, height, fps, dev), nil
}

// CurrentFrame returns the latest pumped frame.
func (s *CaptureSource) CurrentFrame(h *Handle) (Frame, bool) {
	return h.frame()
}

// Close stops the frame pump and releases the device.
func (s *CaptureSource) Close(h *Handle) error {
	if h == nil {
		return nil
	}
	if h.Closed() {
		return nil
	}
	err := h.release()
	s.logger.Info("camera closed", "device", h.Device())
	return err
}

// captureDevice keeps only the most recent frame; there is no backlog.
type captureDevice struct {
	vc       *gocv.VideoCapture
	interval time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	frame Frame
	seq   atomic.Uint64

	stop chan struct{}
	done chan struct{}
}

func newCaptureDevice(vc *gocv.VideoCapture, fps int, logger *slog.Logger) *captureDevice {
	return &captureDevice{
		vc:       vc,
		interval: time.Second / time.Duration(fps),
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *captureDevice) pump() {
	defer close(d.done)

	mat := gocv.NewMat()
	defer mat.Close()

	misses := 0
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		if ok := d.vc.Read(&mat); !ok || mat.Empty() {
			misses++
			if misses == 30 {
				d.logger.Warn("camera produced no frames", "misses", misses)
			}
			time.Sleep(d.interval)
			continue
		}
		misses = 0

		img, err := mat.ToImage()
		if err != nil {
			d.logger.Debug("frame conversion failed", "error", err)
			continue
		}

		f := NewFrame(img, d.seq.Add(1), time.Now())
		d.mu.Lock()
		d.frame = f
		d.mu.Unlock()
	}
}

func (d *captureDevice) latest() (Frame, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.frame.Seq == 0 {
		return Frame{}, false
	}
	return d.frame, true
}

func (d *captureDevice) close() error {
	close(d.stop)
	<-d.done
	return d.vc.Close()
}

// deviceArg turns "0" into the integer index OpenCV expects.
func deviceArg(device string) any {
	if n, err := strconv.Atoi(device); err == nil {
		return n
	}
	return device
}

// devicePath returns the device node for local cameras, or "" for URLs and files.
func devicePath(device string) string {
	if n, err := strconv.Atoi(device); err == nil {
		return fmt.Sprintf("/dev/video%d", n)
	}
	if strings.HasPrefix(device, "/dev/") {
		return device
	}
	return ""
}

// checkDeviceAccess distinguishes a missing device from a refused one on Linux.
func checkDeviceAccess(device string) error {
	if runtime.GOOS != "linux" {
		return nil
	}
	path := devicePath(device)
	if path == "" {
		return nil
	}
	return accessError(path, checkAccess(path))
}

func checkAccess(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

func accessError(path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: no such device", ErrDeviceUnavailable, path)
	default:
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}
}
