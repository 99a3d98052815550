package engine

import (
	"fmt"

	iface "EdgeLPR/interface"
	"EdgeLPR/tensor"

	"github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates"
	"github.com/mattn/go-tflite/delegates/edgetpu"
	"go.uber.org/zap"
)

// tfliteModel owns one interpreter and everything it was built from.
type tfliteModel struct {
	path     string
	model    *tflite.Model
	options  *tflite.InterpreterOptions
	delegate delegates.Delegater
	interp   *tflite.Interpreter
	inputs   []tensor.Info
	outputs  []tensor.Info
}

func openTFLite(path string, opts Options, logger *zap.Logger) (*tfliteModel, error) {
	m := &tfliteModel{path: path}
	m.model = tflite.NewModelFromFile(path)
	if m.model == nil {
		return nil, fmt.Errorf("load model %s: not a tflite model", path)
	}

	m.options = tflite.NewInterpreterOptions()
	if opts.NumThreads > 0 {
		m.options.SetNumThread(opts.NumThreads)
	}
	m.options.SetErrorReporter(func(msg string, _ interface{}) {
		logger.Warn("tflite", zap.String("model", path), zap.String("msg", msg))
	}, nil)

	if opts.UseEdgeTPU {
		dev, err := pickEdgeTPU(opts.EdgeTPUDevice)
		if err != nil {
			m.close()
			return nil, err
		}
		m.delegate = edgetpu.New(dev)
		if m.delegate == nil {
			m.close()
			return nil, fmt.Errorf("create edge tpu delegate on %s failed", dev.Path)
		}
		m.options.AddDelegate(m.delegate)
		logger.Info("edge tpu delegate attached", zap.String("model", path), zap.String("device", dev.Path))
	}

	m.interp = tflite.NewInterpreter(m.model, m.options)
	if m.interp == nil {
		m.close()
		return nil, fmt.Errorf("create interpreter for %s failed", path)
	}
	if status := m.interp.AllocateTensors(); status != tflite.OK {
		m.close()
		return nil, fmt.Errorf("allocate tensors for %s: status %v", path, status)
	}

	for i := 0; i < m.interp.GetInputTensorCount(); i++ {
		t := m.interp.GetInputTensor(i)
		m.inputs = append(m.inputs, tensor.Info{Index: i, Name: t.Name(), Shape: t.Shape()})
	}
	for i := 0; i < m.interp.GetOutputTensorCount(); i++ {
		t := m.interp.GetOutputTensor(i)
		m.outputs = append(m.outputs, tensor.Info{Index: i, Name: t.Name(), Shape: t.Shape()})
	}
	logger.Debug("tflite model loaded",
		zap.String("model", path),
		zap.Stringers("inputs", m.inputs),
		zap.Stringers("outputs", m.outputs))
	return m, nil
}

func pickEdgeTPU(path string) (edgetpu.Device, error) {
	devices, err := edgetpu.DeviceList()
	if err != nil {
		return edgetpu.Device{}, fmt.Errorf("list edge tpu devices: %w", err)
	}
	if len(devices) == 0 {
		return edgetpu.Device{}, fmt.Errorf("no edge tpu device found")
	}
	if path == "" {
		return devices[0], nil
	}
	for _, d := range devices {
		if d.Path == path {
			return d, nil
		}
	}
	return edgetpu.Device{}, fmt.Errorf("edge tpu device %s not found among %d devices", path, len(devices))
}

// setInput copies interleaved 8-bit pixels into the input tensor, widening to
// float32 when the model is not quantized.
func (m *tfliteModel) setInput(info tensor.Info, pix []byte) error {
	t := m.interp.GetInputTensor(info.Index)
	var status tflite.Status
	switch t.Type() {
	case tflite.UInt8:
		status = t.CopyFromBuffer(pix)
	case tflite.Float32:
		status = t.CopyFromBuffer(tensor.PixelsToFloat32(pix))
	default:
		return fmt.Errorf("%w: unsupported input type %v", ErrShapeMismatch, t.Type())
	}
	if status != tflite.OK {
		return fmt.Errorf("%w: copy input: status %v", ErrInvoke, status)
	}
	return nil
}

func (m *tfliteModel) invoke() error {
	if status := m.interp.Invoke(); status != tflite.OK {
		return fmt.Errorf("%w: %s: status %v", ErrInvoke, m.path, status)
	}
	return nil
}

// floats returns a copy of an output tensor as real values.
func (m *tfliteModel) floats(info tensor.Info) ([]float32, error) {
	t := m.interp.GetOutputTensor(info.Index)
	switch t.Type() {
	case tflite.Float32:
		return append([]float32(nil), t.Float32s()...), nil
	case tflite.UInt8:
		return tensor.Dequantize(t.UInt8s(), quant(t)), nil
	case tflite.Int8:
		return tensor.Dequantize(t.Int8s(), quant(t)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported output type %v", ErrShapeMismatch, t.Type())
	}
}

func quant(t *tflite.Tensor) tensor.Quant {
	q := t.QuantizationParams()
	return tensor.Quant{Scale: q.Scale, ZeroPoint: q.ZeroPoint}
}

func (m *tfliteModel) close() {
	if m.interp != nil {
		m.interp.Delete()
		m.interp = nil
	}
	if m.delegate != nil {
		m.delegate.Delete()
		m.delegate = nil
	}
	if m.options != nil {
		m.options.Delete()
		m.options = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
}

func shapes(infos ...tensor.Info) map[string][]int {
	out := make(map[string][]int, len(infos))
	for _, i := range infos {
		out[i.Name] = i.Shape
	}
	return out
}

type TFLiteDetector struct {
	spec   DetectorSpec
	opts   Options
	m      *tfliteModel
	input  tensor.Info
	scores tensor.Info
	boxes  tensor.Info
	State  int
}

func NewTFLiteDetector(opts Options, spec DetectorSpec, logger *zap.Logger) (*TFLiteDetector, error) {
	d := &TFLiteDetector{spec: spec, opts: opts, State: UNREGISTERED}
	m, err := openTFLite(spec.ModelPath, opts, logger)
	if err != nil {
		return nil, err
	}
	d.m = m
	d.State = REGISTERED
	if err := d.bind(); err != nil {
		d.Destroy()
		return nil, err
	}
	d.State = IDLE
	// first invoke also moves the model onto the accelerator
	if _, err := d.Detect(iface.Frame{Pix: make([]byte, spec.Width*spec.Height*iface.Channels), Width: spec.Width, Height: spec.Height}); err != nil {
		d.Destroy()
		return nil, fmt.Errorf("warm up detector: %w", err)
	}
	return d, nil
}

func (d *TFLiteDetector) bind() error {
	var err error
	if d.input, err = tensor.Resolve(d.spec.InputSlot, d.m.inputs); err != nil {
		return fmt.Errorf("detector input: %w", err)
	}
	if err = tensor.MatchShape(d.input.Shape, imageShape(d.spec.Width, d.spec.Height)); err != nil {
		return fmt.Errorf("detector input %s: %w", d.input.Name, err)
	}
	if d.scores, err = tensor.Resolve(d.spec.ScoresSlot, d.m.outputs); err != nil {
		return fmt.Errorf("detector scores: %w", err)
	}
	if err = tensor.MatchShape(d.scores.Shape, []int{1, -1}); err != nil {
		return fmt.Errorf("detector scores %s: %w", d.scores.Name, err)
	}
	if d.boxes, err = tensor.Resolve(d.spec.BoxesSlot, d.m.outputs); err != nil {
		return fmt.Errorf("detector boxes: %w", err)
	}
	if err = tensor.MatchShape(d.boxes.Shape, []int{1, d.scores.Shape[1], tensor.BoxWidth}); err != nil {
		return fmt.Errorf("detector boxes %s: %w", d.boxes.Name, err)
	}
	return nil
}

func (d *TFLiteDetector) Detect(frame iface.Frame) ([]iface.Detection, error) {
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

	if err := d.m.setInput(d.input, frame.Pix); err != nil {
		return nil, err
	}
	if err := d.m.invoke(); err != nil {
		return nil, err
	}
	scores, err := d.m.floats(d.scores)
	if err != nil {
		return nil, err
	}
	boxes, err := d.m.floats(d.boxes)
	if err != nil {
		return nil, err
	}
	return tensor.Detections(scores, boxes)
}

func (d *TFLiteDetector) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:    BackendTFLite,
		ModelPath:  d.spec.ModelPath,
		UseEdgeTPU: d.opts.UseEdgeTPU,
		Slots: map[string]string{
			"input":  d.input.Name,
			"scores": d.scores.Name,
			"boxes":  d.boxes.Name,
		},
		Input:   d.input.Shape,
		Outputs: shapes(d.scores, d.boxes),
	}
}

func (d *TFLiteDetector) Destroy() {
	if d.m != nil {
		d.m.close()
		d.m = nil
	}
	d.State = UNREGISTERED
}

type TFLiteRecognizer struct {
	spec      RecognizerSpec
	opts      Options
	m         *tfliteModel
	input     tensor.Info
	output    tensor.Info
	positions int
	classes   int
	State     int
}

func NewTFLiteRecognizer(opts Options, spec RecognizerSpec, logger *zap.Logger) (*TFLiteRecognizer, error) {
	r := &TFLiteRecognizer{spec: spec, opts: opts, State: UNREGISTERED}
	m, err := openTFLite(spec.ModelPath, opts, logger)
	if err != nil {
		return nil, err
	}
	r.m = m
	r.State = REGISTERED
	if err := r.bind(); err != nil {
		r.Destroy()
		return nil, err
	}
	r.State = IDLE
	if _, err := r.Recognize(iface.Crop{Pix: make([]byte, spec.Width*spec.Height*iface.Channels), Width: spec.Width, Height: spec.Height}); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("warm up recognizer: %w", err)
	}
	return r, nil
}

func (r *TFLiteRecognizer) bind() error {
	var err error
	if r.input, err = tensor.Resolve(r.spec.InputSlot, r.m.inputs); err != nil {
		return fmt.Errorf("recognizer input: %w", err)
	}
	if err = tensor.MatchShape(r.input.Shape, imageShape(r.spec.Width, r.spec.Height)); err != nil {
		return fmt.Errorf("recognizer input %s: %w", r.input.Name, err)
	}
	if r.output, err = tensor.Resolve(r.spec.OutputSlot, r.m.outputs); err != nil {
		return fmt.Errorf("recognizer output: %w", err)
	}
	if err = tensor.MatchShape(r.output.Shape, []int{1, -1, -1}); err != nil {
		return fmt.Errorf("recognizer output %s: %w", r.output.Name, err)
	}
	r.positions, r.classes = tensor.SequenceDims(r.output.Shape, r.spec.ClassMajor)
	return nil
}

func (r *TFLiteRecognizer) Recognize(crop iface.Crop) (iface.CharacterSequence, error) {
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

	if err := r.m.setInput(r.input, crop.Pix); err != nil {
		return nil, err
	}
	if err := r.m.invoke(); err != nil {
		return nil, err
	}
	// argmax is scale invariant, so quantized outputs are read as they are
	t := r.m.interp.GetOutputTensor(r.output.Index)
	switch t.Type() {
	case tflite.UInt8:
		return tensor.Sequence(t.UInt8s(), r.output.Shape, r.spec.ClassMajor)
	case tflite.Int8:
		return tensor.Sequence(t.Int8s(), r.output.Shape, r.spec.ClassMajor)
	case tflite.Float32:
		return tensor.Sequence(t.Float32s(), r.output.Shape, r.spec.ClassMajor)
	default:
		return nil, fmt.Errorf("%w: unsupported output type %v", ErrShapeMismatch, t.Type())
	}
}

func (r *TFLiteRecognizer) NumClasses() int     { return r.classes }
func (r *TFLiteRecognizer) SequenceLength() int { return r.positions }

func (r *TFLiteRecognizer) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:    BackendTFLite,
		ModelPath:  r.spec.ModelPath,
		UseEdgeTPU: r.opts.UseEdgeTPU,
		Slots: map[string]string{
			"input":  r.input.Name,
			"output": r.output.Name,
		},
		Input:   r.input.Shape,
		Outputs: shapes(r.output),
	}
}

func (r *TFLiteRecognizer) Destroy() {
	if r.m != nil {
		r.m.close()
		r.m = nil
	}
	r.State = UNREGISTERED
}
