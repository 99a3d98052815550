package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	iface "EdgeLPR/interface"
	"EdgeLPR/vocab"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	frames []iface.Frame
	err    error
	closed bool
}

func (s *sliceSource) Next() (iface.Frame, error) {
	if len(s.frames) == 0 {
		if s.err != nil {
			return iface.Frame{}, s.err
		}
		return iface.Frame{}, iface.ErrEndOfStream
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func TestRun(t *testing.T) {
	tbl, _ := vocab.LPRNet()
	det := &fakeDetector{cands: []iface.Detection{{Score: 0.9, Box: plateBox}}}
	rec := &fakeRecognizer{seq: seq(t, tbl, "<Beijing>", "A", "1")}
	p := newPipeline(t, det, rec, Config{})
	var out bytes.Buffer

	require.NoError(t, p.Run(context.Background(), &sliceSource{frames: []iface.Frame{frame(), frame(), frame()}}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Equal(t, "[40.00Hz] Plate found (score:0.90): <Beijing>A1", l)
	}
	assert.Equal(t, 3, det.calls)
}

func TestRun_DegradedFramesStillReport(t *testing.T) {
	det := &fakeDetector{err: errors.New("invoke failed")}
	p := newPipeline(t, det, &fakeRecognizer{}, Config{})
	var out bytes.Buffer

	require.NoError(t, p.Run(context.Background(), &sliceSource{frames: []iface.Frame{frame(), frame()}}, &out))
	assert.Equal(t, 2, strings.Count(out.String(), "Frame failed (detect)"))
}

func TestRun_SourceError(t *testing.T) {
	p := newPipeline(t, &fakeDetector{}, &fakeRecognizer{}, Config{})
	err := p.Run(context.Background(), &sliceSource{err: errors.New("device unplugged")}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "device unplugged")
}

func TestRun_StopsOnCancel(t *testing.T) {
	det := &fakeDetector{}
	p := newPipeline(t, det, &fakeRecognizer{}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx, &sliceSource{frames: []iface.Frame{frame()}}, &bytes.Buffer{}))
	assert.Zero(t, det.calls)
}

type sizedRecognizer struct {
	fakeRecognizer
	classes, positions int
}

func (r *sizedRecognizer) NumClasses() int     { return r.classes }
func (r *sizedRecognizer) SequenceLength() int { return r.positions }

func TestCheckModels(t *testing.T) {
	tbl, err := vocab.LPRNet()
	require.NoError(t, err)

	assert.NoError(t, CheckModels(&sizedRecognizer{classes: 71, positions: 18}, tbl, 7))
	assert.ErrorIs(t, CheckModels(&sizedRecognizer{classes: 68, positions: 18}, tbl, 7), ErrModelMismatch)
	assert.ErrorIs(t, CheckModels(&sizedRecognizer{classes: 71, positions: 7}, tbl, 7), ErrModelMismatch)
	assert.ErrorIs(t, CheckModels(&sizedRecognizer{classes: 71, positions: 18}, tbl, -1), ErrModelMismatch)

	gappy, err := vocab.New(map[string]int{"A": 0, "_": 5}, "_")
	require.NoError(t, err)
	assert.ErrorIs(t, CheckModels(&sizedRecognizer{classes: 2, positions: 18}, gappy, 7), ErrModelMismatch)
}
