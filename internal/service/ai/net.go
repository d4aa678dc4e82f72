package ai

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// netModel runs inference through OpenCV's DNN module.
type netModel struct {
	net gocv.Net
}

// newNetModel loads the network and sets backend/target preferences. configPath may be
// empty for self-describing formats such as ONNX.
func newNetModel(modelPath, configPath string) (*netModel, error) {
	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, errors.New("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, errors.New("failed to set preferable backend or target")
	}

	return &netModel{net: net}, nil
}

func (m *netModel) Infer(blob gocv.Mat) ([]float32, []int, error) {
	m.net.SetInput(blob, "")

	output := m.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read network output: %w", err)
	}
	values := make([]float32, len(data))
	copy(values, data)

	return values, output.Size(), nil
}

func (m *netModel) Close() error {
	return m.net.Close()
}
