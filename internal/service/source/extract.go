package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"proctor/internal/config"
	"proctor/internal/logger"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"gocv.io/x/gocv"
)

const framePattern = "frame_%04d.png"

// Extractor runs an external ffmpeg process that dumps frames at a fixed rate.
type Extractor struct {
	Binary     string
	FPS        int
	Timeout    time.Duration
	ScratchDir string
	// Prepare adjusts the compiled command before it starts; it points the command at
	// Binary when nil.
	Prepare ffmpeg.CompilationOption
	logger  *logger.Logger
}

// NewExtractor creates an Extractor from configuration.
func NewExtractor(config *config.Config, logger *logger.Logger) *Extractor {
	return &Extractor{
		Binary:     config.FFmpegPath,
		FPS:        config.ExtractFPS,
		Timeout:    config.ExtractTimeout,
		ScratchDir: config.ScratchDir,
		logger:     logger,
	}
}

// useBinary runs the configured ffmpeg instead of the one on PATH.
func (e *Extractor) useBinary(stream *ffmpeg.Stream, cmd *exec.Cmd) {
	path, err := exec.LookPath(e.Binary)
	cmd.Path, cmd.Err = path, err
	cmd.Args[0] = e.Binary
}

// Extract writes frames of path into dir and returns the produced images in order.
// Cancelling ctx aborts the process and returns the context error.
func (e *Extractor) Extract(ctx context.Context, path, dir string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	var output bytes.Buffer
	stream := ffmpeg.Input(path).
		Output(filepath.Join(dir, framePattern), ffmpeg.KwArgs{"vf": fmt.Sprintf("fps=%d", e.FPS)}).
		GlobalArgs("-nostdin", "-hide_banner", "-loglevel", "error")
	stream.Context = ctx
	stream = stream.WithOutput(&output).WithErrorOutput(&output)

	prepare := e.Prepare
	if prepare == nil {
		prepare = e.useBinary
	}

	e.logger.Info("Extracting frames to %s", dir)
	cmd := stream.Compile(prepare)
	cmd.WaitDelay = time.Second
	err := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, sourceError(fmt.Sprintf("Frame extraction timed out after %s", e.Timeout), ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, ctx.Err()
	case err != nil:
		e.logger.Error("ffmpeg frame extraction failed: %v: %s", err, truncate(output.Bytes(), 500))
		return nil, sourceError("Could not extract frames from video", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, sourceError("Could not extract frames from video", err)
	}
	sort.Strings(files)
	e.logger.Info("Extracted %d frames", len(files))

	if len(files) == 0 {
		return nil, sourceError("No frames could be extracted", nil)
	}
	return files, nil
}

func truncate(output []byte, limit int) string {
	if len(output) > limit {
		output = output[:limit]
	}
	return string(output)
}

// extractOpener is the last resort: extract images with ffmpeg into a scratch directory.
type extractOpener struct {
	extractor *Extractor
	logger    *logger.Logger
}

// ExtractionBackend wraps an Extractor as the final Opener of the chain.
func ExtractionBackend(extractor *Extractor, logger *logger.Logger) Opener {
	return &extractOpener{extractor: extractor, logger: logger}
}

func (o *extractOpener) Name() string {
	return "ffmpeg-extract"
}

func (o *extractOpener) Open(ctx context.Context, path string, format Format) (Sequence, error) {
	if err := os.MkdirAll(o.extractor.ScratchDir, 0755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	dir, err := os.MkdirTemp(o.extractor.ScratchDir, format.String()+"_frames_")
	if err != nil {
		return nil, fmt.Errorf("create frames directory: %w", err)
	}

	files, err := o.extractor.Extract(ctx, path, dir)
	if err != nil {
		removeDir(dir, o.logger)
		return nil, err
	}
	return &fileSequence{files: files, dir: dir, logger: o.logger}, nil
}

// fileSequence walks extracted images; Close removes their directory.
type fileSequence struct {
	files  []string
	next   int
	dir    string
	logger *logger.Logger
}

func (s *fileSequence) Total() int {
	return len(s.files)
}

func (s *fileSequence) Skip() bool {
	if s.next >= len(s.files) {
		return false
	}
	s.next++
	return true
}

func (s *fileSequence) Read() (gocv.Mat, bool) {
	if s.next >= len(s.files) {
		return gocv.Mat{}, false
	}
	file := s.files[s.next]
	s.next++

	frame := gocv.IMRead(file, gocv.IMReadColor)
	if frame.Empty() {
		s.logger.Warning("Could not read frame %s", file)
	}
	return frame, true
}

func (s *fileSequence) Close() error {
	removeDir(s.dir, s.logger)
	return nil
}

// removeDir deletes a scratch directory; failures are logged and otherwise ignored.
func removeDir(dir string, logger *logger.Logger) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warning("Could not remove %s: %v", dir, err)
		return
	}
	logger.Info("Cleaned up %s", dir)
}
