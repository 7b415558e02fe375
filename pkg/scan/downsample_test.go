package scan

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-badgescan/pkg/camera"
)

func TestDownsample(t *testing.T) {
	src := camera.SolidImage(100, 50, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	out := Downsample(src, 0.5)
	gray, ok := out.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, 50, gray.Bounds().Dx())
	assert.Equal(t, 25, gray.Bounds().Dy())
	assert.Equal(t, uint8(255), gray.GrayAt(10, 10).Y)

	assert.Same(t, src.(*image.RGBA), Downsample(src, 1).(*image.RGBA))
	assert.Same(t, src.(*image.RGBA), Downsample(src, 0).(*image.RGBA))
	assert.Nil(t, Downsample(nil, 0.5))
}

func TestDownsample_TinyImage(t *testing.T) {
	out := Downsample(image.NewGray(image.Rect(0, 0, 1, 1)), 0.1)
	assert.Equal(t, image.Rect(0, 0, 1, 1), out.Bounds())
}

func TestDownsampleFrame_KeepsIdentity(t *testing.T) {
	ts := time.Now()
	f := camera.NewFrame(camera.SolidImage(64, 48, color.Gray{Y: 9}), 7, ts)

	out := downsampleFrame(f, 0.5)
	assert.Equal(t, uint64(7), out.Seq)
	assert.Equal(t, ts, out.Timestamp)
	assert.Equal(t, 32, out.Width)
	assert.Equal(t, 24, out.Height)

	assert.Equal(t, f, downsampleFrame(f, 1))
}
