package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"proctor/internal/config"
	"proctor/internal/dto"
	"proctor/internal/logger"

	"gocv.io/x/gocv"
)

// model runs one forward pass on a preprocessed NCHW blob and returns the raw output
// tensor together with its shape.
type model interface {
	Infer(blob gocv.Mat) ([]float32, []int, error)
	Close() error
}

// DetectorService wraps the object detection model. The model is loaded on first use
// and kept for the lifetime of the process.
type DetectorService struct {
	modelPath    string
	configPath   string
	backend      string
	onnxLibrary  string
	width        int
	confidence   float32
	nmsThreshold float32
	classNames   map[int]string
	logger       *logger.Logger

	once    sync.Once
	model   model
	loadErr error
	load    func() (model, error)
}

// NewDetectorService creates a detector from configuration. Nothing is loaded yet.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	names := config.ClassNames
	if len(names) == 0 {
		names = CocoClassNames()
	}

	service := &DetectorService{
		modelPath:    config.ModelPath,
		configPath:   config.ModelConfigPath,
		backend:      config.DetectorBackend,
		onnxLibrary:  config.OnnxLibraryPath,
		width:        config.InputWidth,
		confidence:   float32(config.ConfidenceThreshold),
		nmsThreshold: float32(config.NMSThreshold),
		classNames:   names,
		logger:       logger,
	}
	service.load = service.loadModel
	return service
}

// EnsureLoaded loads the model exactly once. A failed load is not retried.
func (s *DetectorService) EnsureLoaded() error {
	s.once.Do(func() {
		s.logger.Info("Loading %s detection model...", s.backend)
		s.model, s.loadErr = s.load()
		if s.loadErr == nil {
			s.logger.Info("Detection model loaded successfully")
		}
	})
	return s.loadErr
}

// loadModel resolves the model file and initializes the configured backend.
func (s *DetectorService) loadModel() (model, error) {
	modelPath := ResolveModelPath(s.modelPath)
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", s.modelPath)
	}
	s.logger.Info("Using model path: %s", modelPath)

	switch s.backend {
	case "onnxruntime":
		return newOnnxModel(modelPath, s.onnxLibrary, s.width)
	default:
		return newNetModel(modelPath, s.configPath)
	}
}

// Detect resizes the frame to the configured width, runs the model and returns every
// detection above the confidence threshold. Boxes are in the resized frame's pixels.
func (s *DetectorService) Detect(frame gocv.Mat) ([]dto.Detection, error) {
	if frame.Empty() {
		return nil, errors.New("frame is empty")
	}
	if err := s.EnsureLoaded(); err != nil {
		return nil, fmt.Errorf("detection model not initialized: %w", err)
	}

	resized, owned, err := ResizeToWidth(frame, s.width)
	if err != nil {
		return nil, err
	}
	if owned {
		defer resized.Close()
	}

	//Create blob with parameters that fit yolov8 input: RGB, 0..1, square
	blob := gocv.BlobFromImage(resized, 1.0/255.0, image.Pt(s.width, s.width), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	output, shape, err := s.model.Infer(blob)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scaleX := float32(resized.Cols()) / float32(s.width)
	scaleY := float32(resized.Rows()) / float32(s.width)
	candidates, err := decodeYOLO(output, shape, s.confidence, scaleX, scaleY)
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, resized.Cols(), resized.Rows())
	kept := suppress(candidates, s.confidence, s.nmsThreshold)

	results := make([]dto.Detection, 0, len(kept))
	for _, c := range kept {
		results = append(results, dto.Detection{
			Box:        c.box.Intersect(bounds),
			Label:      ClassLabel(s.classNames, c.classID),
			Confidence: float64(c.score),
		})
	}
	for _, object := range results {
		s.logger.Info("Detected %s with confidence %.2f", object.Label, object.Confidence)
	}

	return results, nil
}

// Close releases the model if it was loaded.
func (s *DetectorService) Close() error {
	if s.model == nil {
		return nil
	}
	return s.model.Close()
}

// ResizeToWidth scales img to width keeping its aspect ratio. When the width already
// matches, img itself is returned and owned is false.
func ResizeToWidth(img gocv.Mat, width int) (resized gocv.Mat, owned bool, err error) {
	if img.Cols() == width {
		return img, false, nil
	}
	height := int(float64(img.Rows()) * float64(width) / float64(img.Cols()))

	dst := gocv.NewMat()
	if err := gocv.Resize(img, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear); err != nil {
		dst.Close()
		return gocv.Mat{}, false, fmt.Errorf("failed to resize frame: %w", err)
	}
	return dst, true, nil
}

// ResolveModelPath looks for name as given, next to the executable, and in up to three
// parent directories of the executable. The original name is returned when nothing matches.
func ResolveModelPath(name string) string {
	if _, err := os.Stat(name); err == nil || filepath.IsAbs(name) {
		return name
	}

	exe, err := os.Executable()
	if err != nil {
		return name
	}
	dir := filepath.Dir(exe)
	for i := 0; i < 4; i++ {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return name
}
