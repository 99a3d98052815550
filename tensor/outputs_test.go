package tensor

import (
	"testing"

	iface "EdgeLPR/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetections(t *testing.T) {
	dets, err := Detections(
		[]float32{0.1, 0.9},
		[]float32{0, 0, 1, 1, 0.4, 0.3, 0.6, 0.7},
	)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, iface.Detection{Score: 0.9, Box: iface.NormBox{YMin: 0.4, XMin: 0.3, YMax: 0.6, XMax: 0.7}}, dets[1])

	empty, err := Detections(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Detections([]float32{0.1, 0.2}, []float32{0, 0, 1, 1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSequence(t *testing.T) {
	// 3 positions x 2 classes
	rowMajor := []uint8{9, 1, 0, 5, 3, 3}
	seq, err := Sequence(rowMajor, []int{1, 3, 2}, false)
	require.NoError(t, err)
	assert.Equal(t, iface.CharacterSequence{0, 1, 0}, seq)

	classMajor := []float32{9, 0, 3, 1, 5, 3}
	seq, err = Sequence(classMajor, []int{1, 2, 3}, true)
	require.NoError(t, err)
	assert.Equal(t, iface.CharacterSequence{0, 1, 0}, seq)

	_, err = Sequence(rowMajor, []int{3, 2}, false)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSequenceDims(t *testing.T) {
	pos, classes := SequenceDims([]int{1, 18, 71}, false)
	assert.Equal(t, 18, pos)
	assert.Equal(t, 71, classes)
	pos, classes = SequenceDims([]int{1, 71, 18}, true)
	assert.Equal(t, 18, pos)
	assert.Equal(t, 71, classes)
	pos, _ = SequenceDims([]int{71}, false)
	assert.Zero(t, pos)
}

func TestPixelsToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0, 127, 255}, PixelsToFloat32([]byte{0, 127, 255}))
}
