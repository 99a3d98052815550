// Package engine adapts the detector and recognizer models to the pipeline.
// Two backends are supported: TensorFlow Lite, optionally with the Edge TPU
// delegate, and the OpenCV DNN module.
package engine

import (
	"errors"
	"fmt"
	"os"

	iface "EdgeLPR/interface"
	"EdgeLPR/tensor"

	"go.uber.org/zap"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003
const BUSY = 0x0004

const (
	BackendTFLite = "tflite"
	BackendOpenCV = "opencv"
)

var (
	ErrSlotNotFound  = tensor.ErrSlotNotFound
	ErrShapeMismatch = tensor.ErrShapeMismatch
	ErrInvoke        = errors.New("engine: invoke failed")
	ErrNotLoaded     = errors.New("engine: model not loaded")
	ErrBusy          = errors.New("engine: model is busy")
)

// Options select and tune the inference backend shared by both models.
type Options struct {
	Backend       string
	UseEdgeTPU    bool
	EdgeTPUDevice string
	NumThreads    int
}

type DetectorSpec struct {
	ModelPath  string
	InputSlot  string
	ScoresSlot string
	BoxesSlot  string
	// Width and Height are the frame size the model was compiled for.
	Width  int
	Height int
}

type RecognizerSpec struct {
	ModelPath  string
	InputSlot  string
	OutputSlot string
	Width      int
	Height     int
	ClassMajor bool
}

// LoadDetector loads, validates and warms up the detector. Any error here is a
// model load failure.
func LoadDetector(opts Options, spec DetectorSpec, logger *zap.Logger) (iface.Detector, error) {
	if err := checkModelFile(spec.ModelPath); err != nil {
		return nil, err
	}
	switch opts.Backend {
	case BackendTFLite, "":
		return NewTFLiteDetector(opts, spec, logger)
	case BackendOpenCV:
		warnEdgeTPU(opts, logger)
		return NewCVDetector(spec, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", opts.Backend)
	}
}

func LoadRecognizer(opts Options, spec RecognizerSpec, logger *zap.Logger) (iface.Recognizer, error) {
	if err := checkModelFile(spec.ModelPath); err != nil {
		return nil, err
	}
	switch opts.Backend {
	case BackendTFLite, "":
		return NewTFLiteRecognizer(opts, spec, logger)
	case BackendOpenCV:
		warnEdgeTPU(opts, logger)
		return NewCVRecognizer(spec, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", opts.Backend)
	}
}

func checkModelFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("model %s: is a directory", path)
	}
	return nil
}

func warnEdgeTPU(opts Options, logger *zap.Logger) {
	if opts.UseEdgeTPU {
		logger.Warn("edge tpu delegate is only available with the tflite backend, running on cpu")
	}
}

// checkState guards an invocation the way every adapter does: only an IDLE
// model may run.
func checkState(state int) error {
	switch state {
	case UNREGISTERED, REGISTERED:
		return ErrNotLoaded
	case BUSY:
		return ErrBusy
	}
	return nil
}

// imageShape is the NHWC input shape of a model fed with interleaved RGB.
func imageShape(width, height int) []int {
	return []int{1, height, width, iface.Channels}
}

func checkPixels(pix []byte, width, height int) error {
	if want := width * height * iface.Channels; len(pix) != want {
		return fmt.Errorf("%w: input buffer has %d bytes, want %d", ErrShapeMismatch, len(pix), want)
	}
	return nil
}
