package capture

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	iface "EdgeLPR/interface"
	"EdgeLPR/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func solidFrame(w, h int, rgb [3]byte) iface.Frame {
	pix := make([]byte, w*h*iface.Channels)
	for i := 0; i < len(pix); i += iface.Channels {
		copy(pix[i:], rgb[:])
	}
	return iface.Frame{Pix: pix, Width: w, Height: h}
}

func TestResampler(t *testing.T) {
	frame := solidFrame(320, 240, [3]byte{200, 40, 10})

	out, err := Resampler{}.Resample(frame, image.Rect(96, 96, 224, 144), 94, 24)
	require.NoError(t, err)
	require.Len(t, out, 94*24*3)
	assert.Equal(t, []byte{200, 40, 10}, out[:3])
	assert.Equal(t, []byte{200, 40, 10}, out[len(out)-3:])
}

func TestResampler_WithExtractor(t *testing.T) {
	ext := region.NewExtractor(94, 24, Resampler{})
	crop, err := ext.Extract(solidFrame(320, 240, [3]byte{1, 2, 3}), iface.NormBox{YMin: 0, XMin: 0, YMax: 1, XMax: 1})
	require.NoError(t, err)
	assert.Equal(t, 94, crop.Width)
	assert.Equal(t, 24, crop.Height)
	assert.Len(t, crop.Pix, 94*24*3)
}

func TestOpenCamera_Failures(t *testing.T) {
	_, err := OpenCamera(CameraConfig{Device: "0"}, zap.NewNop())
	assert.Error(t, err, "frame size is required")

	missing := filepath.Join(t.TempDir(), "absent.mp4")
	_, statErr := os.Stat(missing)
	require.ErrorIs(t, statErr, os.ErrNotExist)
	_, err = OpenCamera(CameraConfig{Device: missing, FrameWidth: 320, FrameHeight: 240}, zap.NewNop())
	assert.Error(t, err)
}
