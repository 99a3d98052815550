// Package tensor holds backend-independent helpers for binding and reading
// model tensors.
package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrSlotNotFound  = errors.New("tensor: slot not found")
	ErrShapeMismatch = errors.New("tensor: shape mismatch")
)

// Info describes one tensor as introspected from a loaded model.
type Info struct {
	Index int
	Name  string
	Shape []int
}

func (i Info) String() string {
	return fmt.Sprintf("#%d %q %v", i.Index, i.Name, i.Shape)
}

// Resolve finds the tensor named by slot. A slot of the form "#N" selects by
// position, which is only meant for models exported without tensor names.
func Resolve(slot string, tensors []Info) (Info, error) {
	if strings.HasPrefix(slot, "#") {
		n, err := strconv.Atoi(slot[1:])
		if err != nil {
			return Info{}, fmt.Errorf("%w: bad positional slot %q", ErrSlotNotFound, slot)
		}
		for _, t := range tensors {
			if t.Index == n {
				return t, nil
			}
		}
		return Info{}, fmt.Errorf("%w: %q among %v", ErrSlotNotFound, slot, tensors)
	}
	for _, t := range tensors {
		if t.Name == slot {
			return t, nil
		}
	}
	return Info{}, fmt.Errorf("%w: %q among %v", ErrSlotNotFound, slot, tensors)
}

// MatchShape compares shape against want, where a want entry of -1 matches any size.
func MatchShape(shape, want []int) error {
	if len(shape) != len(want) {
		return fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, shape, want)
	}
	for i := range want {
		if want[i] >= 0 && shape[i] != want[i] {
			return fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, shape, want)
		}
	}
	return nil
}

// Number is the element types produced by the supported backends.
type Number interface {
	~uint8 | ~int8 | ~float32
}

// ArgMaxRows treats data as rows x cols row-major and returns the column of the
// maximum of every row. Ties resolve to the lowest column.
func ArgMaxRows[T Number](data []T, rows, cols int) ([]int, error) {
	if rows < 0 || cols <= 0 || len(data) < rows*cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(data), rows, cols)
	}
	out := make([]int, rows)
	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]
		best := 0
		for c := 1; c < cols; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[r] = best
	}
	return out, nil
}

// Quant is an affine quantization: real = Scale * (q - ZeroPoint).
type Quant struct {
	Scale     float64
	ZeroPoint int
}

// Dequantize converts quantized values to float32. A zero scale means the
// tensor is not quantized and values are copied as they are.
func Dequantize[T ~uint8 | ~int8](data []T, q Quant) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		if q.Scale == 0 {
			out[i] = float32(v)
			continue
		}
		out[i] = float32(q.Scale * float64(int(v)-q.ZeroPoint))
	}
	return out
}

// ArgMaxRowsAcrossAxis is ArgMaxRows for tensors laid out class-major
// (cols x rows), as some LPRNet exports produce.
func ArgMaxRowsAcrossAxis[T Number](data []T, rows, cols int) ([]int, error) {
	if rows < 0 || cols <= 0 || len(data) < rows*cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(data), cols, rows)
	}
	out := make([]int, rows)
	for r := 0; r < rows; r++ {
		best := 0
		for c := 1; c < cols; c++ {
			if data[c*rows+r] > data[best*rows+r] {
				best = c
			}
		}
		out[r] = best
	}
	return out, nil
}
