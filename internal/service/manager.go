package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"proctor/internal/config"
	"proctor/internal/dto"
	"proctor/internal/logger"
	"proctor/internal/service/aggregate"
	"proctor/internal/service/ai"
	"proctor/internal/service/proctor"
	"proctor/internal/service/source"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Detector finds objects in a frame and draws them back onto it.
type Detector interface {
	Detect(frame gocv.Mat) ([]dto.Detection, error)
	Annotate(frame *gocv.Mat, detections []dto.Detection, fps float64) error
}

// Viewers receives stream updates for live viewers.
type Viewers interface {
	GetClientCount() int
	Broadcast(message []byte) bool
}

// Evidence keeps annotated snapshots of violating frames.
type Evidence interface {
	Add(data []byte, session string, frame int, events []dto.Event) bool
}

// Manager drives the two run modes: bounded analysis of a recording and continuous
// monitoring of a camera.
type Manager struct {
	detector   Detector
	classifier *proctor.Classifier
	reader     *source.Reader
	viewers    Viewers
	evidence   Evidence
	logger     *logger.Logger

	cameraIndex int
	display     bool
	openCamera  func(index int) (source.Camera, error)
	encode      func(frame gocv.Mat) ([]byte, error)
}

func NewManager(detector Detector, classifier *proctor.Classifier, reader *source.Reader, config *config.Config, logger *logger.Logger) *Manager {
	return &Manager{
		detector:    detector,
		classifier:  classifier,
		reader:      reader,
		logger:      logger,
		cameraIndex: config.CameraIndex,
		display:     config.Display,
		openCamera:  source.OpenDevice,
		encode:      ai.EncodeJPEG,
	}
}

// WithViewers enables broadcasting stream updates.
func (m *Manager) WithViewers(viewers Viewers) *Manager {
	m.viewers = viewers
	return m
}

// WithEvidence enables saving snapshots of frames with high severity events.
func (m *Manager) WithEvidence(evidence Evidence) *Manager {
	m.evidence = evidence
	return m
}

// AnalyzeVideo samples up to maxFrames frames from path and folds their events into one
// Verdict, stopping at the first high severity event. Source failures are reported in the
// Verdict; detector faults and cancellation are returned as errors.
func (m *Manager) AnalyzeVideo(ctx context.Context, path string, maxFrames int) (dto.Verdict, error) {
	session := uuid.NewString()
	m.logger.Info("Session %s: analyzing %s (max frames: %d)", session, path, maxFrames)

	frames, err := m.reader.Open(ctx, path, maxFrames)
	if err != nil {
		var sourceErr *source.SourceError
		if errors.As(err, &sourceErr) {
			m.logger.Error("Session %s: %v", session, err)
			return dto.ErrorVerdict(sourceErr.Message), nil
		}
		return dto.Verdict{}, err
	}
	defer frames.Close()

	agg := aggregate.New()
	for {
		if err := ctx.Err(); err != nil {
			return dto.Verdict{}, err
		}

		frame, ok := frames.Next()
		if !ok {
			break
		}

		result, err := m.classifier.Analyze(m.detector, frame.Mat)
		frame.Mat.Close()
		if err != nil {
			return dto.Verdict{}, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		m.logger.Info("Frame %d: %d detections, %d persons, %d events", frame.Index, len(result.Detections), result.PersonCount, len(result.Events))

		if agg.Add(result.Events) {
			m.logger.Info("High severity event at frame %d - stopping early", frame.Index)
			break
		}
	}

	verdict := agg.Verdict()
	m.logger.Info("Session %s: analysis complete - processed %d frames, total events: %d", session, agg.Frames(), len(verdict.Events))
	return verdict, nil
}

// streamUpdate is the message broadcast to live viewers for every stream frame.
type streamUpdate struct {
	Session    string          `json:"session"`
	Frame      int             `json:"frame"`
	FPS        float64         `json:"fps"`
	Events     []dto.Event     `json:"events"`
	Detections []detectionView `json:"detections"`
	Image      string          `json:"image"`
}

type detectionView struct {
	Box        [4]int  `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// RunStream classifies camera frames until ctx is done, the camera stops delivering
// frames or the local window is closed with 'q'. Events are logged as they occur.
func (m *Manager) RunStream(ctx context.Context) error {
	session := uuid.NewString()

	camera, err := m.openCamera(m.cameraIndex)
	if err != nil {
		return err
	}
	defer camera.Close()

	var window *gocv.Window
	if m.display {
		window = gocv.NewWindow("Proctor")
		defer window.Close()
	}

	frame := gocv.NewMat()
	defer frame.Close()

	m.logger.Info("Session %s: monitoring camera %d", session, m.cameraIndex)

	count := 0
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Session %s: stopped after %d frames", session, count)
			return nil
		default:
		}

		if !camera.Read(&frame) || frame.Empty() {
			m.logger.Info("Session %s: camera stream ended after %d frames", session, count)
			return nil
		}
		count++

		now := time.Now()
		fps := 0.0
		if elapsed := now.Sub(last).Seconds(); elapsed > 0 {
			fps = 1 / elapsed
		}
		last = now

		result, err := m.classifier.Analyze(m.detector, frame)
		if err != nil {
			return fmt.Errorf("frame %d: %w", count, err)
		}
		for _, event := range result.Events {
			m.logger.Warning("%s | %s", event.Type, event.Details)
		}

		if err := m.publish(session, count, fps, &frame, result); err != nil {
			return err
		}

		if window != nil {
			window.IMShow(frame)
			if window.WaitKey(1) == 'q' {
				m.logger.Info("Session %s: stopped from window after %d frames", session, count)
				return nil
			}
		}
	}
}

// publish annotates the frame when anyone will look at it, then hands it to viewers and
// the evidence buffer.
func (m *Manager) publish(session string, count int, fps float64, frame *gocv.Mat, result dto.FrameResult) error {
	watching := m.viewers != nil && m.viewers.GetClientCount() > 0
	violating := m.evidence != nil && hasHighSeverity(result.Events)
	if !watching && !violating && !m.display {
		return nil
	}

	if err := m.detector.Annotate(frame, result.Detections, fps); err != nil {
		m.logger.Error("Failed to annotate frame %d: %v", count, err)
	}
	if !watching && !violating {
		return nil
	}

	image, err := m.encode(*frame)
	if err != nil {
		m.logger.Error("Failed to encode frame %d: %v", count, err)
		return nil
	}

	if violating {
		m.evidence.Add(image, session, count, result.Events)
	}

	if watching {
		message, err := json.Marshal(newStreamUpdate(session, count, fps, result, image))
		if err != nil {
			return fmt.Errorf("marshal stream update: %w", err)
		}
		m.viewers.Broadcast(message)
	}
	return nil
}

func newStreamUpdate(session string, count int, fps float64, result dto.FrameResult, image []byte) streamUpdate {
	events := result.Events
	if events == nil {
		events = []dto.Event{}
	}

	detections := make([]detectionView, 0, len(result.Detections))
	for _, d := range result.Detections {
		detections = append(detections, detectionView{
			Box:        [4]int{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y},
			Label:      d.Label,
			Confidence: d.Confidence,
		})
	}

	return streamUpdate{
		Session:    session,
		Frame:      count,
		FPS:        fps,
		Events:     events,
		Detections: detections,
		Image:      base64.StdEncoding.EncodeToString(image),
	}
}

func hasHighSeverity(events []dto.Event) bool {
	for _, event := range events {
		if event.Severity == dto.SeverityHigh {
			return true
		}
	}
	return false
}
