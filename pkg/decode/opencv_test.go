package decode

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-badgescan/pkg/camera"
)

func TestOpenCVQR_Lifecycle(t *testing.T) {
	d := NewOpenCVQR()
	assert.Equal(t, "opencv-qr", d.Name())

	_, _, err := d.Detect(camera.NewFrame(camera.SolidImage(64, 48, color.Gray{}), 1, time.Now()))
	assert.Error(t, err, "detect before init")

	require.NoError(t, d.Init(context.Background()))
	require.NoError(t, d.Init(context.Background()))

	blank := camera.NewFrame(camera.SolidImage(320, 240, color.Gray{Y: 255}), 1, time.Now())
	_, ok, err := d.Detect(blank)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}

func TestOpenCVQR_DecodesRenderedQR(t *testing.T) {
	d := NewOpenCVQR()
	require.NoError(t, d.Init(context.Background()))
	defer d.Close()

	p, ok, err := d.Detect(qrFrame(t, "worker:W003", 300))
	require.NoError(t, err)
	if !ok {
		t.Skip("OpenCV build did not locate the synthetic code")
	}
	assert.Equal(t, "worker:W003", p.Text)
	assert.Equal(t, "qr", p.Format)
}
