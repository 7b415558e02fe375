package decode

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/teslashibe/go-badgescan/pkg/camera"
)

// Supported ZXing symbologies.
const (
	FormatQR      = "qr"
	FormatCode128 = "code128"
)

// ZXing decodes with the pure-Go gozxing readers. It needs no native
// libraries, so it stays available when OpenCV is not.
type ZXing struct {
	formats []string
	tryHard bool
	readers []zxingReader
	mu      sync.Mutex
}

type zxingReader struct {
	format string
	reader gozxing.Reader
}

// NewZXing creates a capability for the given formats (default: qr, code128).
func NewZXing(formats ...string) *ZXing {
	if len(formats) == 0 {
		formats = []string{FormatQR, FormatCode128}
	}
	return &ZXing{formats: formats}
}

// WithTryHarder trades speed for accuracy on small or skewed symbols.
func (z *ZXing) WithTryHarder(on bool) *ZXing {
	z.tryHard = on
	return z
}

// Name returns "zxing".
func (z *ZXing) Name() string {
	return "zxing"
}

// Init builds one reader per configured format.
func (z *ZXing) Init(ctx context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	readers := make([]zxingReader, 0, len(z.formats))
	for _, f := range z.formats {
		switch strings.ToLower(f) {
		case FormatQR:
			readers = append(readers, zxingReader{format: FormatQR, reader: qrcode.NewQRCodeReader()})
		case FormatCode128:
			readers = append(readers, zxingReader{format: FormatCode128, reader: oned.NewCode128Reader()})
		default:
			return fmt.Errorf("unsupported format %q", f)
		}
	}
	if len(readers) == 0 {
		return fmt.Errorf("no formats configured")
	}
	z.readers = readers
	return nil
}

// Detect binarizes the frame once and runs every reader over it.
func (z *ZXing) Detect(frame camera.Frame) (RawPayload, bool, error) {
	if frame.Empty() {
		return RawPayload{}, false, nil
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame.Image)
	if err != nil {
		return RawPayload{}, false, fmt.Errorf("binarize: %w", err)
	}

	var hints map[gozxing.DecodeHintType]interface{}
	if z.tryHard {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	for _, r := range z.readers {
		result, err := r.reader.Decode(bmp, hints)
		r.reader.Reset()
		if err != nil {
			if isMiss(err) {
				continue
			}
			return RawPayload{}, false, fmt.Errorf("%s: %w", r.format, err)
		}
		return RawPayload{
			Text:       result.GetText(),
			Bytes:      result.GetRawBytes(),
			Format:     r.format,
			Decoder:    z.Name(),
			DetectedAt: time.Now(),
		}, true, nil
	}
	return RawPayload{}, false, nil
}

// Close drops the readers.
func (z *ZXing) Close() error {
	z.mu.Lock()
	z.readers = nil
	z.mu.Unlock()
	return nil
}

// isMiss reports errors that mean "no readable symbol here".
func isMiss(err error) bool {
	switch err.(type) {
	case gozxing.NotFoundException, gozxing.ChecksumException, gozxing.FormatException:
		return true
	}
	return false
}
