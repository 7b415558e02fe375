// Package decode turns camera frames into raw symbol payloads.
//
// Decoding is split into capabilities, each wrapping one library or device.
// A Chain orders them by priority and falls back from one to the next:
//   - OpenCVQR   - OpenCV QRCodeDetector via gocv, fastest on full frames
//   - ZXing      - pure-Go QR and Code 128 readers, always loadable
//   - Wedge      - a hardware line scanner that ignores the frame
//   - Func/Mock  - adapters for tests and custom detectors
package decode

import (
	"context"
	"time"

	"github.com/teslashibe/go-badgescan/pkg/camera"
)

// RawPayload is unvalidated decoded text plus the decoder that produced it.
type RawPayload struct {
	Text       string    `json:"text"`
	Bytes      []byte    `json:"bytes,omitempty"`
	Format     string    `json:"format,omitempty"`
	Decoder    string    `json:"decoder"`
	DetectedAt time.Time `json:"detected_at"`
}

// String returns Text, or the raw bytes when no text was decoded.
func (p RawPayload) String() string {
	if p.Text != "" {
		return p.Text
	}
	return string(p.Bytes)
}

// Capability is one pluggable decoding backend.
//
// Detect is called once per sampled frame from the session's loop and must
// be stateless or internally synchronized.
type Capability interface {
	// Name identifies the capability in logs and the API.
	Name() string

	// Init loads the backend. A failure marks the capability unavailable
	// for the lifetime of the chain; it is not retried per frame.
	Init(ctx context.Context) error

	// Detect returns a payload and true when a symbol was decoded.
	// A nil error with false means "nothing in this frame".
	Detect(frame camera.Frame) (RawPayload, bool, error)

	// Close releases backend resources.
	Close() error
}

// DetectFunc is the bare frame-to-payload signature.
type DetectFunc func(frame camera.Frame) (RawPayload, bool)

// Func adapts a DetectFunc into a Capability with no setup or teardown.
func Func(name string, fn DetectFunc) Capability {
	return &funcCapability{name: name, fn: fn}
}

type funcCapability struct {
	name string
	fn   DetectFunc
}

func (f *funcCapability) Name() string                   { return f.name }
func (f *funcCapability) Init(ctx context.Context) error { return nil }
func (f *funcCapability) Close() error                   { return nil }

func (f *funcCapability) Detect(frame camera.Frame) (RawPayload, bool, error) {
	p, ok := f.fn(frame)
	return p, ok, nil
}
