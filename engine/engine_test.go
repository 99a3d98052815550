package engine

import (
	"os"
	"path/filepath"
	"testing"

	iface "EdgeLPR/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Failures(t *testing.T) {
	logger := zap.NewNop()
	dir := t.TempDir()
	model := filepath.Join(dir, "model.tflite")
	require.NoError(t, os.WriteFile(model, []byte("not a model"), 0o644))

	t.Run("missing detector model", func(t *testing.T) {
		_, err := LoadDetector(Options{Backend: BackendTFLite}, DetectorSpec{ModelPath: filepath.Join(dir, "absent.tflite")}, logger)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing recognizer model", func(t *testing.T) {
		_, err := LoadRecognizer(Options{Backend: BackendOpenCV}, RecognizerSpec{ModelPath: filepath.Join(dir, "absent.onnx")}, logger)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := LoadDetector(Options{}, DetectorSpec{ModelPath: dir}, logger)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := LoadDetector(Options{Backend: "ncnn"}, DetectorSpec{ModelPath: model}, logger)
		assert.ErrorContains(t, err, "unsupported backend")
		_, err = LoadRecognizer(Options{Backend: "ncnn"}, RecognizerSpec{ModelPath: model}, logger)
		assert.ErrorContains(t, err, "unsupported backend")
	})
}

func TestCheckState(t *testing.T) {
	assert.ErrorIs(t, checkState(UNREGISTERED), ErrNotLoaded)
	assert.ErrorIs(t, checkState(REGISTERED), ErrNotLoaded)
	assert.ErrorIs(t, checkState(BUSY), ErrBusy)
	assert.NoError(t, checkState(IDLE))
}

func TestCheckPixels(t *testing.T) {
	assert.NoError(t, checkPixels(make([]byte, 94*24*3), 94, 24))
	assert.ErrorIs(t, checkPixels(make([]byte, 94*24), 94, 24), ErrShapeMismatch)
	assert.Equal(t, []int{1, 240, 320, 3}, imageShape(320, 240))
}

func TestDestroyIsIdempotent(t *testing.T) {
	d := &TFLiteDetector{State: IDLE}
	d.Destroy()
	d.Destroy()
	assert.Equal(t, UNREGISTERED, d.State)

	_, err := d.Detect(iface.Frame{Pix: make([]byte, 320*240*3), Width: 320, Height: 240})
	assert.ErrorIs(t, err, ErrNotLoaded)

	r := &CVRecognizer{State: IDLE}
	r.Destroy()
	assert.Equal(t, UNREGISTERED, r.State)
}
