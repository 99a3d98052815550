package iface

import (
	"strings"
	"time"
)

// Channels is the pixel layout used everywhere in the pipeline: interleaved RGB.
const Channels = 3

// Frame is one captured image, row-major interleaved RGB.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
}

// Valid reports whether the buffer length matches the dimensions.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*Channels
}

// NormBox is a bounding box in fractions of the frame size, in the detector's
// (ymin, xmin, ymax, xmax) order.
type NormBox struct {
	YMin, XMin, YMax, XMax float32
}

type Detection struct {
	Score float32
	Box   NormBox
}

// Crop is the resampled plate region in the recognizer's input layout
// (1 x Height x Width x 3).
type Crop struct {
	Pix    []byte
	Width  int
	Height int
}

// CharacterSequence holds the per-position argmax class indices of the recognizer.
type CharacterSequence []int

// DecodedPlate is the ordered list of emitted tokens. Region tags such as
// "<Beijing>" are single tokens.
type DecodedPlate []string

func (p DecodedPlate) String() string {
	return strings.Join(p, "")
}

// Failure reasons recorded on degraded frames.
const (
	ReasonDetect    = "detect"
	ReasonGeometry  = "geometry"
	ReasonRecognize = "recognize"
	ReasonVocab     = "vocabulary"
	ReasonTimeout   = "timeout"
)

// Report is the per-frame outcome.
type Report struct {
	Found    bool          `json:"found"`
	Plate    DecodedPlate  `json:"plate,omitempty"`
	Score    float32       `json:"score"`
	MaxScore float32       `json:"max_score"`
	Floor    float32       `json:"floor"`
	Reason   string        `json:"reason,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Hz is the instantaneous processing rate for this frame.
func (r Report) Hz() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return 1 / r.Duration.Seconds()
}

// Failed reports whether the frame degraded because of an adapter or geometry error.
func (r Report) Failed() bool {
	return r.Reason != ""
}
