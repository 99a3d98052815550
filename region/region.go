// Package region turns a normalized detection box into the fixed-size crop fed
// to the recognizer.
package region

import (
	"errors"
	"fmt"
	"image"
	"math"

	iface "EdgeLPR/interface"
)

var (
	ErrDegenerateBox = errors.New("region: degenerate box")
	ErrFrameSize     = errors.New("region: frame buffer does not match its dimensions")
)

// PixelRect maps box onto a width x height frame. Coordinates are floored,
// then the rectangle is intersected with the frame bounds, so a box of
// (0,0,1,1) covers the whole frame. Boxes that end up with no area, including
// inverted, non-finite and fully out-of-frame boxes, return ErrDegenerateBox.
func PixelRect(box iface.NormBox, width, height int) (image.Rectangle, error) {
	for _, v := range []float32{box.YMin, box.XMin, box.YMax, box.XMax} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return image.Rectangle{}, fmt.Errorf("%w: non-finite coordinate in %+v", ErrDegenerateBox, box)
		}
	}
	// literal, not image.Rect: inverted boxes must stay inverted and be rejected
	r := image.Rectangle{
		Min: image.Point{X: scale(box.XMin, width), Y: scale(box.YMin, height)},
		Max: image.Point{X: scale(box.XMax, width), Y: scale(box.YMax, height)},
	}
	clipped := r.Intersect(image.Rect(0, 0, width, height))
	if clipped.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: %+v -> %v outside %dx%d", ErrDegenerateBox, box, r, width, height)
	}
	return clipped, nil
}

func scale(v float32, size int) int {
	p := math.Floor(float64(v) * float64(size))
	// keep the int conversion defined for huge detector outputs
	return int(math.Max(-1, math.Min(p, float64(size)+1)))
}

// Extractor crops and resamples plate regions.
type Extractor struct {
	Width     int
	Height    int
	Resampler iface.Resampler
}

func NewExtractor(width, height int, r iface.Resampler) *Extractor {
	return &Extractor{Width: width, Height: height, Resampler: r}
}

// Extract validates the geometry before anything reaches the resampler.
func (e *Extractor) Extract(frame iface.Frame, box iface.NormBox) (iface.Crop, error) {
	if !frame.Valid() {
		return iface.Crop{}, fmt.Errorf("%w: %d bytes for %dx%d", ErrFrameSize, len(frame.Pix), frame.Width, frame.Height)
	}
	rect, err := PixelRect(box, frame.Width, frame.Height)
	if err != nil {
		return iface.Crop{}, err
	}
	pix, err := e.Resampler.Resample(frame, rect, e.Width, e.Height)
	if err != nil {
		return iface.Crop{}, fmt.Errorf("region: resample %v: %w", rect, err)
	}
	if len(pix) != e.Width*e.Height*iface.Channels {
		return iface.Crop{}, fmt.Errorf("region: resampler returned %d bytes, want %d", len(pix), e.Width*e.Height*iface.Channels)
	}
	return iface.Crop{Pix: pix, Width: e.Width, Height: e.Height}, nil
}
