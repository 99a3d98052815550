package capture

import (
	"fmt"
	"image"

	iface "EdgeLPR/interface"

	"gocv.io/x/gocv"
)

// Resampler crops and scales with OpenCV's bilinear resize.
type Resampler struct{}

func (Resampler) Resample(frame iface.Frame, rect image.Rectangle, width, height int) ([]byte, error) {
	src, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer src.Close()

	roi := src.Region(rect)
	defer roi.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(roi, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	if dst.Cols() != width || dst.Rows() != height {
		return nil, fmt.Errorf("resize produced %dx%d, want %dx%d", dst.Cols(), dst.Rows(), width, height)
	}
	return dst.ToBytes(), nil
}
