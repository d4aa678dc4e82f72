package source

import (
	"context"
	"fmt"

	"proctor/internal/logger"

	"gocv.io/x/gocv"
)

// captureOpener opens a file through an OpenCV VideoCapture backend.
type captureOpener struct {
	name   string
	open   func(path string) (*gocv.VideoCapture, error)
	logger *logger.Logger
}

// DefaultBackend lets OpenCV pick the decoder.
func DefaultBackend(logger *logger.Logger) Opener {
	return &captureOpener{name: "default", open: gocv.VideoCaptureFile, logger: logger}
}

// FFmpegBackend forces OpenCV's FFmpeg decoder.
func FFmpegBackend(logger *logger.Logger) Opener {
	return &captureOpener{
		name: "ffmpeg",
		open: func(path string) (*gocv.VideoCapture, error) {
			return gocv.VideoCaptureFileWithAPI(path, gocv.VideoCaptureFFmpeg)
		},
		logger: logger,
	}
}

func (o *captureOpener) Name() string {
	return o.name
}

func (o *captureOpener) Open(ctx context.Context, path string, format Format) (Sequence, error) {
	capture, err := o.open(path)
	if err != nil || !capture.IsOpened() {
		if capture != nil {
			capture.Close()
		}
		return nil, fmt.Errorf("%s backend cannot open %s: %w", o.name, path, ErrUnavailable)
	}

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	fps := capture.Get(gocv.VideoCaptureFPS)
	total := int(capture.Get(gocv.VideoCaptureFrameCount))
	if total <= 0 {
		total = 1
	}
	o.logger.Info("Video metadata - Resolution: %dx%d, FPS: %.2f, Total frames: %d", width, height, fps, total)

	if width == 0 || height == 0 {
		capture.Close()
		return nil, sourceError(fmt.Sprintf("Invalid video dimensions: %dx%d", width, height), nil)
	}

	return &captureSequence{capture: capture, total: total, scratch: gocv.NewMat()}, nil
}

type captureSequence struct {
	capture *gocv.VideoCapture
	total   int
	scratch gocv.Mat
}

func (s *captureSequence) Total() int {
	return s.total
}

func (s *captureSequence) Skip() bool {
	return s.capture.Read(&s.scratch)
}

func (s *captureSequence) Read() (gocv.Mat, bool) {
	frame := gocv.NewMat()
	if !s.capture.Read(&frame) {
		frame.Close()
		return gocv.Mat{}, false
	}
	return frame, true
}

func (s *captureSequence) Close() error {
	s.scratch.Close()
	return s.capture.Close()
}

// Camera is a live capture device.
type Camera interface {
	Read(frame *gocv.Mat) bool
	Close() error
}

// OpenDevice opens the capture device with the given index.
func OpenDevice(index int) (Camera, error) {
	capture, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("webcam %d not accessible: %w", index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("webcam %d not accessible", index)
	}
	return capture, nil
}
