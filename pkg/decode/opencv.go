package decode

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/teslashibe/go-badgescan/pkg/camera"
	"gocv.io/x/gocv"
)

// OpenCVQR decodes QR codes with OpenCV's QRCodeDetector.
type OpenCVQR struct {
	detector gocv.QRCodeDetector
	ready    bool
	mu       sync.Mutex // Protects inference
}

// NewOpenCVQR creates an uninitialized OpenCV QR capability.
func NewOpenCVQR() *OpenCVQR {
	return &OpenCVQR{}
}

// Name returns "opencv-qr".
func (d *OpenCVQR) Name() string {
	return "opencv-qr"
}

// Init creates the native detector. OpenCV is linked through cgo, so a
// binary without it fails to build or load; Init only allocates.
func (d *OpenCVQR) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	d.detector = gocv.NewQRCodeDetector()
	d.ready = true
	return nil
}

// Detect runs detect-and-decode on the frame.
func (d *OpenCVQR) Detect(frame camera.Frame) (RawPayload, bool, error) {
	if frame.Empty() {
		return RawPayload{}, false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return RawPayload{}, false, fmt.Errorf("detector not initialized")
	}

	mat, err := toMat(frame.Image)
	if err != nil {
		return RawPayload{}, false, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	text := d.detector.DetectAndDecode(mat, &points, &straight)
	if text == "" {
		return RawPayload{}, false, nil
	}

	return RawPayload{
		Text:       text,
		Format:     "qr",
		Decoder:    d.Name(),
		DetectedAt: time.Now(),
	}, true, nil
}

// Close releases the detector resources.
func (d *OpenCVQR) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return nil
	}
	d.ready = false
	return d.detector.Close()
}

func toMat(img image.Image) (gocv.Mat, error) {
	if g, ok := img.(*image.Gray); ok {
		return gocv.ImageGrayToMatGray(g)
	}
	return gocv.ImageToMatRGB(img)
}
