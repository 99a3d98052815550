package engine

import (
	"fmt"
	"image"
	"strings"

	iface "EdgeLPR/interface"
	"EdgeLPR/tensor"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// cvModel runs a model through the OpenCV DNN module on the CPU. OpenCV does
// not expose tensor shapes before a forward pass, so outputs are validated on
// the warm-up run instead.
type cvModel struct {
	path    string
	net     gocv.Net
	input   string
	outputs []tensor.Info
}

func openCV(path, inputSlot string, logger *zap.Logger) (*cvModel, error) {
	net := gocv.ReadNet(path, "")
	if net.Empty() {
		return nil, fmt.Errorf("load model %s: opencv could not read it", path)
	}
	net.SetPreferableBackend(gocv.NetBackendOpenCV)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	m := &cvModel{path: path, net: net}
	// positional input slots select the default input
	if !strings.HasPrefix(inputSlot, "#") {
		m.input = inputSlot
	}
	for i, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		name := layer.GetName()
		layer.Close()
		if name == "_input" {
			continue
		}
		m.outputs = append(m.outputs, tensor.Info{Index: i, Name: name})
	}
	if len(m.outputs) == 0 {
		_ = net.Close()
		return nil, fmt.Errorf("model %s has no output layers", path)
	}
	logger.Debug("opencv model loaded", zap.String("model", path), zap.Stringers("outputs", m.outputs))
	return m, nil
}

// forward runs pix (interleaved RGB, height x width) and returns a copy of each
// requested output along with its shape.
func (m *cvModel) forward(pix []byte, width, height int, outputs []string) ([][]float32, [][]int, error) {
	img, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	defer img.Close()

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(width, height), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	m.net.SetInput(blob, m.input)
	probs := m.net.ForwardLayers(outputs)
	defer func() {
		for _, p := range probs {
			p.Close()
		}
	}()
	if len(probs) != len(outputs) {
		return nil, nil, fmt.Errorf("%w: %s: got %d outputs, want %d", ErrInvoke, m.path, len(probs), len(outputs))
	}

	data := make([][]float32, len(probs))
	dims := make([][]int, len(probs))
	for i, p := range probs {
		if p.Empty() {
			return nil, nil, fmt.Errorf("%w: %s: output %s is empty", ErrInvoke, m.path, outputs[i])
		}
		values, err := p.DataPtrFloat32()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: read %s: %v", ErrInvoke, outputs[i], err)
		}
		data[i] = append([]float32(nil), values...)
		dims[i] = p.Size()
	}
	return data, dims, nil
}

func (m *cvModel) close() {
	_ = m.net.Close()
}

type CVDetector struct {
	spec   DetectorSpec
	m      *cvModel
	scores tensor.Info
	boxes  tensor.Info
	State  int
}

func NewCVDetector(spec DetectorSpec, logger *zap.Logger) (*CVDetector, error) {
	m, err := openCV(spec.ModelPath, spec.InputSlot, logger)
	if err != nil {
		return nil, err
	}
	d := &CVDetector{spec: spec, m: m, State: REGISTERED}
	if d.scores, err = tensor.Resolve(spec.ScoresSlot, m.outputs); err != nil {
		d.Destroy()
		return nil, fmt.Errorf("detector scores: %w", err)
	}
	if d.boxes, err = tensor.Resolve(spec.BoxesSlot, m.outputs); err != nil {
		d.Destroy()
		return nil, fmt.Errorf("detector boxes: %w", err)
	}

	_, dims, err := m.forward(make([]byte, spec.Width*spec.Height*iface.Channels), spec.Width, spec.Height,
		[]string{d.scores.Name, d.boxes.Name})
	if err != nil {
		d.Destroy()
		return nil, fmt.Errorf("warm up detector: %w", err)
	}
	d.scores.Shape, d.boxes.Shape = dims[0], dims[1]
	if err := tensor.MatchShape(d.scores.Shape, []int{1, -1}); err != nil {
		d.Destroy()
		return nil, fmt.Errorf("detector scores %s: %w", d.scores.Name, err)
	}
	if err := tensor.MatchShape(d.boxes.Shape, []int{1, d.scores.Shape[1], tensor.BoxWidth}); err != nil {
		d.Destroy()
		return nil, fmt.Errorf("detector boxes %s: %w", d.boxes.Name, err)
	}
	d.State = IDLE
	return d, nil
}

func (d *CVDetector) Detect(frame iface.Frame) ([]iface.Detection, error) {
	if err := checkState(d.State); err != nil {
		return nil, err
	}
	if frame.Width != d.spec.Width || frame.Height != d.spec.Height {
		return nil, fmt.Errorf("%w: frame %dx%d, model wants %dx%d", ErrShapeMismatch, frame.Width, frame.Height, d.spec.Width, d.spec.Height)
	}
	if err := checkPixels(frame.Pix, frame.Width, frame.Height); err != nil {
		return nil, err
	}
	d.State = BUSY
	defer func() { d.State = IDLE }()

	out, _, err := d.m.forward(frame.Pix, frame.Width, frame.Height, []string{d.scores.Name, d.boxes.Name})
	if err != nil {
		return nil, err
	}
	return tensor.Detections(out[0], out[1])
}

func (d *CVDetector) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:   BackendOpenCV,
		ModelPath: d.spec.ModelPath,
		Slots: map[string]string{
			"input":  d.m.input,
			"scores": d.scores.Name,
			"boxes":  d.boxes.Name,
		},
		Input:   imageShape(d.spec.Width, d.spec.Height),
		Outputs: shapes(d.scores, d.boxes),
	}
}

func (d *CVDetector) Destroy() {
	if d.m != nil {
		d.m.close()
		d.m = nil
	}
	d.State = UNREGISTERED
}

type CVRecognizer struct {
	spec      RecognizerSpec
	m         *cvModel
	output    tensor.Info
	positions int
	classes   int
	State     int
}

func NewCVRecognizer(spec RecognizerSpec, logger *zap.Logger) (*CVRecognizer, error) {
	m, err := openCV(spec.ModelPath, spec.InputSlot, logger)
	if err != nil {
		return nil, err
	}
	r := &CVRecognizer{spec: spec, m: m, State: REGISTERED}
	if r.output, err = tensor.Resolve(spec.OutputSlot, m.outputs); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("recognizer output: %w", err)
	}
	_, dims, err := m.forward(make([]byte, spec.Width*spec.Height*iface.Channels), spec.Width, spec.Height,
		[]string{r.output.Name})
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("warm up recognizer: %w", err)
	}
	r.output.Shape = dims[0]
	if err := tensor.MatchShape(r.output.Shape, []int{1, -1, -1}); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("recognizer output %s: %w", r.output.Name, err)
	}
	r.positions, r.classes = tensor.SequenceDims(r.output.Shape, spec.ClassMajor)
	r.State = IDLE
	return r, nil
}

func (r *CVRecognizer) Recognize(crop iface.Crop) (iface.CharacterSequence, error) {
	if err := checkState(r.State); err != nil {
		return nil, err
	}
	if crop.Width != r.spec.Width || crop.Height != r.spec.Height {
		return nil, fmt.Errorf("%w: crop %dx%d, model wants %dx%d", ErrShapeMismatch, crop.Width, crop.Height, r.spec.Width, r.spec.Height)
	}
	if err := checkPixels(crop.Pix, crop.Width, crop.Height); err != nil {
		return nil, err
	}
	r.State = BUSY
	defer func() { r.State = IDLE }()

	out, _, err := r.m.forward(crop.Pix, crop.Width, crop.Height, []string{r.output.Name})
	if err != nil {
		return nil, err
	}
	return tensor.Sequence(out[0], r.output.Shape, r.spec.ClassMajor)
}

func (r *CVRecognizer) NumClasses() int     { return r.classes }
func (r *CVRecognizer) SequenceLength() int { return r.positions }

func (r *CVRecognizer) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:   BackendOpenCV,
		ModelPath: r.spec.ModelPath,
		Slots: map[string]string{
			"input":  r.m.input,
			"output": r.output.Name,
		},
		Input:   imageShape(r.spec.Width, r.spec.Height),
		Outputs: shapes(r.output),
	}
}

func (r *CVRecognizer) Destroy() {
	if r.m != nil {
		r.m.close()
		r.m = nil
	}
	r.State = UNREGISTERED
}
