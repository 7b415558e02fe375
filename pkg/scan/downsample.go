package scan

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/teslashibe/go-badgescan/pkg/camera"
)

// Downsample scales img by factor into a grayscale image. Factors outside
// (0, 1) return img unchanged.
func Downsample(img image.Image, factor float64) image.Image {
	if img == nil || factor <= 0 || factor >= 1 {
		return img
	}

	b := img.Bounds()
	w := max(int(float64(b.Dx())*factor), 1)
	h := max(int(float64(b.Dy())*factor), 1)

	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// downsampleFrame keeps the frame identity and replaces its pixels.
func downsampleFrame(f camera.Frame, factor float64) camera.Frame {
	if f.Empty() || factor <= 0 || factor >= 1 {
		return f
	}
	return camera.NewFrame(Downsample(f.Image, factor), f.Seq, f.Timestamp)
}
