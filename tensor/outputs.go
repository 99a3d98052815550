package tensor

import (
	"fmt"

	iface "EdgeLPR/interface"
)

// BoxWidth is the per-candidate stride of a boxes tensor: ymin, xmin, ymax, xmax.
const BoxWidth = 4

// Detections pairs a scores vector with its parallel boxes tensor. Candidate
// order is preserved so that ties keep resolving to the first occurrence.
func Detections(scores, boxes []float32) ([]iface.Detection, error) {
	if len(boxes) < len(scores)*BoxWidth {
		return nil, fmt.Errorf("%w: %d scores but %d box values", ErrShapeMismatch, len(scores), len(boxes))
	}
	out := make([]iface.Detection, len(scores))
	for i, s := range scores {
		b := boxes[i*BoxWidth : (i+1)*BoxWidth]
		out[i] = iface.Detection{
			Score: s,
			Box:   iface.NormBox{YMin: b[0], XMin: b[1], YMax: b[2], XMax: b[3]},
		}
	}
	return out, nil
}

// Sequence reduces a [1, positions, classes] output (or [1, classes, positions]
// when classMajor is set) to its per-position argmax.
func Sequence[T Number](data []T, shape []int, classMajor bool) (iface.CharacterSequence, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("%w: recognizer output %v is not [1,T,C]", ErrShapeMismatch, shape)
	}
	var (
		idx []int
		err error
	)
	if classMajor {
		idx, err = ArgMaxRowsAcrossAxis(data, shape[2], shape[1])
	} else {
		idx, err = ArgMaxRows(data, shape[1], shape[2])
	}
	if err != nil {
		return nil, err
	}
	return iface.CharacterSequence(idx), nil
}

// SequenceDims returns (positions, classes) of a recognizer output shape.
func SequenceDims(shape []int, classMajor bool) (int, int) {
	if len(shape) != 3 {
		return 0, 0
	}
	if classMajor {
		return shape[2], shape[1]
	}
	return shape[1], shape[2]
}

// PixelsToFloat32 widens interleaved 8-bit pixels for float input tensors.
// Values keep their 0..255 range.
func PixelsToFloat32(pix []byte) []float32 {
	out := make([]float32, len(pix))
	for i, p := range pix {
		out[i] = float32(p)
	}
	return out
}
