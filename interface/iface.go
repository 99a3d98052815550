package iface

import (
	"errors"
	"image"
)

// ErrEndOfStream is returned by a FrameSource that has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// EngineConfig is what an adapter reports about the model it has loaded.
type EngineConfig struct {
	Backend    string
	ModelPath  string
	UseEdgeTPU bool
	Slots      map[string]string
	Input      []int
	Outputs    map[string][]int
}

// Detector wraps the plate detection model. Detect returns one candidate per
// anchor the model evaluates, unordered and without suppression.
type Detector interface {
	Detect(frame Frame) ([]Detection, error)
	CheckConfig() EngineConfig
	Destroy()
}

// Recognizer wraps the sequence model and returns the per-position argmax.
type Recognizer interface {
	Recognize(crop Crop) (CharacterSequence, error)
	NumClasses() int
	SequenceLength() int
	CheckConfig() EngineConfig
	Destroy()
}

// Resampler crops rect out of frame and scales it to width x height, returning
// interleaved RGB. rect is already clamped and non-empty.
type Resampler interface {
	Resample(frame Frame, rect image.Rectangle, width, height int) ([]byte, error)
}

// FrameSource yields frames already sized for the detector. Next returns
// ErrEndOfStream once the source is exhausted.
type FrameSource interface {
	Next() (Frame, error)
	Close() error
}

// Observer receives every report, degraded frames included.
type Observer interface {
	Observe(r Report)
}
