package ai

import (
	"errors"
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// onnxModel runs inference through the ONNX Runtime shared library.
type onnxModel struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newOnnxModel(modelPath, libraryPath string, width int) (*onnxModel, error) {
	if libraryPath == "" {
		libraryPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	if libraryPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	ort.SetSharedLibraryPath(libraryPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect onnx model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("expected one input and at least one output, got %d and %d", len(inputs), len(outputs))
	}

	outputShape := outputs[0].Dimensions
	if len(outputShape) != 3 || outputShape[1] <= 4 || outputShape[2] <= 0 {
		return nil, fmt.Errorf("unsupported onnx output shape %v", outputShape)
	}
	outputShape = ort.NewShape(1, outputShape[1], outputShape[2])

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(width), int64(width)))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &onnxModel{session: session, input: input, output: output}, nil
}

func (m *onnxModel) Infer(blob gocv.Mat) ([]float32, []int, error) {
	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}
	in := m.input.GetData()
	if len(data) != len(in) {
		return nil, nil, fmt.Errorf("blob has %d values, model expects %d", len(data), len(in))
	}
	copy(in, data)

	if err := m.session.Run(); err != nil {
		return nil, nil, fmt.Errorf("onnx run: %w", err)
	}

	out := m.output.GetData()
	values := make([]float32, len(out))
	copy(values, out)

	shape := m.output.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return values, dims, nil
}

func (m *onnxModel) Close() error {
	err := m.session.Destroy()
	m.input.Destroy()
	m.output.Destroy()
	return err
}
