package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"caffmed-api/internal/vision"
)

type layout int

const (
	layoutNHWC layout = iota
	layoutNCHW
)

// ONNXOptions configures OpenONNX.
type ONNXOptions struct {
	ModelPath     string
	SharedLibPath string
	// InputSize fills spatial dimensions the model leaves dynamic.
	InputSize int
}

// onnxEngine runs an ONNX Runtime session bound to one input and one output
// tensor. The bound buffers are shared, so Run holds mu from copy-in to
// copy-out.
type onnxEngine struct {
	mu sync.Mutex

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	layout     layout
	inputSize  int
	outputSize int
}

// ONNXOpener returns an Opener that loads the model described by opts.
func ONNXOpener(opts ONNXOptions) Opener {
	return func() (Engine, error) {
		return OpenONNX(opts)
	}
}

// OpenONNX initializes the runtime environment and creates a session for the
// model's first input and first output.
func OpenONNX(opts ONNXOptions) (Engine, error) {
	if opts.SharedLibPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx init environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputShape, lay, size, err := resolveInputShape(inputs[0].Dimensions, opts.InputSize)
	if err != nil {
		return nil, err
	}
	outputShape := resolveOutputShape(outputs[0].Dimensions)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("onnx new input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new session: %w", err)
	}

	return &onnxEngine{
		session:    session,
		input:      inputTensor,
		output:     outputTensor,
		layout:     lay,
		inputSize:  size,
		outputSize: int(outputShape.FlattenedSize()),
	}, nil
}

// resolveInputShape pins the batch to 1, fills dynamic spatial dimensions and
// detects channel order from the position of the 3-channel axis.
func resolveInputShape(dims ort.Shape, fallbackSize int) (ort.Shape, layout, int, error) {
	if len(dims) != 4 {
		return nil, 0, 0, fmt.Errorf("onnx input rank %d, want 4", len(dims))
	}
	shape := ort.NewShape(dims...)
	shape[0] = 1

	var lay layout
	var hIdx, wIdx int
	switch {
	case shape[3] == vision.Channels:
		lay, hIdx, wIdx = layoutNHWC, 1, 2
	case shape[1] == vision.Channels:
		lay, hIdx, wIdx = layoutNCHW, 2, 3
	default:
		return nil, 0, 0, fmt.Errorf("onnx input %v has no %d-channel axis", dims, vision.Channels)
	}
	for _, i := range []int{hIdx, wIdx} {
		if shape[i] <= 0 {
			if fallbackSize <= 0 {
				return nil, 0, 0, fmt.Errorf("onnx input %v has dynamic spatial size", dims)
			}
			shape[i] = int64(fallbackSize)
		}
	}
	if shape[hIdx] != shape[wIdx] {
		return nil, 0, 0, fmt.Errorf("onnx input %v is not square", dims)
	}
	return shape, lay, int(shape[hIdx]), nil
}

func resolveOutputShape(dims ort.Shape) ort.Shape {
	shape := ort.NewShape(dims...)
	for i := range shape {
		if shape[i] <= 0 {
			shape[i] = 1
		}
	}
	return shape
}

func (e *onnxEngine) InputSize() int  { return e.inputSize }
func (e *onnxEngine) OutputSize() int { return e.outputSize }

func (e *onnxEngine) Run(t *vision.Tensor) (RawPrediction, error) {
	if t.Height != e.inputSize || t.Width != e.inputSize {
		return nil, fmt.Errorf("tensor %dx%d does not match model input %dx%d",
			t.Height, t.Width, e.inputSize, e.inputSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fillInput(e.input.GetData(), t, e.layout)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	out := e.output.GetData()
	raw := make(RawPrediction, len(out))
	for i, v := range out {
		raw[i] = float64(v)
	}
	return raw, nil
}

func fillInput(dst []float32, t *vision.Tensor, lay layout) {
	if lay == layoutNHWC {
		copy(dst, t.Data)
		return
	}
	plane := t.Height * t.Width
	for i := 0; i < plane; i++ {
		src := t.Data[i*vision.Channels:]
		dst[i] = src[0]
		dst[plane+i] = src[1]
		dst[2*plane+i] = src[2]
	}
}

func (e *onnxEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var closeErr error
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			closeErr = err
		}
	}
	if e.output != nil {
		if err := e.output.Destroy(); err != nil {
			closeErr = err
		}
	}
	if e.input != nil {
		if err := e.input.Destroy(); err != nil {
			closeErr = err
		}
	}
	if err := ort.DestroyEnvironment(); err != nil {
		closeErr = err
	}
	return closeErr
}
