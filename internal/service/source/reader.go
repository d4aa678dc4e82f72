package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"proctor/internal/config"
	"proctor/internal/logger"

	"gocv.io/x/gocv"
)

// Frame is one sampled frame. The receiver must Close the Mat.
type Frame struct {
	Index int
	Mat   gocv.Mat
}

// Reader opens video files through an ordered chain of backends and samples up to
// maxFrames representative frames from whichever backend succeeds.
type Reader struct {
	openers    []Opener
	fetcher    *Fetcher
	scratchDir string
	logger     *logger.Logger
}

// NewReader creates a Reader trying the default decoder, the FFmpeg decoder and
// finally external frame extraction. fetcher may be nil.
func NewReader(config *config.Config, logger *logger.Logger, fetcher *Fetcher) *Reader {
	return NewReaderWithOpeners(config, logger, fetcher,
		DefaultBackend(logger),
		FFmpegBackend(logger),
		ExtractionBackend(NewExtractor(config, logger), logger),
	)
}

// NewReaderWithOpeners creates a Reader with a custom backend chain.
func NewReaderWithOpeners(config *config.Config, logger *logger.Logger, fetcher *Fetcher, openers ...Opener) *Reader {
	return &Reader{
		openers:    openers,
		fetcher:    fetcher,
		scratchDir: config.ScratchDir,
		logger:     logger,
	}
}

// Open prepares a FrameSource for path. Every failure is a *SourceError except
// cancellation, which returns the context error.
func (r *Reader) Open(ctx context.Context, path string, maxFrames int) (*FrameSource, error) {
	if maxFrames <= 0 {
		return nil, sourceError(fmt.Sprintf("max frames must be positive, got %d", maxFrames), nil)
	}

	local, cleanup, err := r.localize(ctx, path)
	if err != nil {
		return nil, asSourceError(err)
	}

	source, err := r.open(ctx, path, local, maxFrames)
	if err != nil {
		cleanup()
		return nil, asSourceError(err)
	}
	source.cleanup = cleanup
	return source, nil
}

func (r *Reader) open(ctx context.Context, path, local string, maxFrames int) (*FrameSource, error) {
	info, err := os.Stat(local)
	if err != nil {
		return nil, sourceError("Video file does not exist: "+path, err)
	}
	r.logger.Info("Video file size: %d bytes", info.Size())

	format, head, err := Probe(local)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	r.logger.Info("File magic bytes (hex): %s, format: %s", head, format)

	for _, opener := range r.openers {
		r.logger.Info("Attempting to open with %s backend...", opener.Name())
		seq, err := opener.Open(ctx, local, format)
		if errors.Is(err, ErrUnavailable) {
			r.logger.Warning("%v", err)
			continue
		}
		if err != nil {
			return nil, err
		}

		source := newFrameSource(seq, maxFrames, r.logger)
		r.logger.Info("Processing parameters - Backend: %s, Stride: %d, Max frames: %d", opener.Name(), source.Stride(), maxFrames)
		return source, nil
	}

	return nil, sourceError("Unable to open video file: "+path, nil)
}

// localize downloads remote sources into a scratch directory. The returned cleanup
// removes anything it created.
func (r *Reader) localize(ctx context.Context, path string) (string, func(), error) {
	if !IsRemote(path) {
		return path, func() {}, nil
	}
	if r.fetcher == nil {
		return "", nil, sourceError("Object storage is not configured for "+path, nil)
	}

	if err := os.MkdirAll(r.scratchDir, 0755); err != nil {
		return "", nil, fmt.Errorf("create scratch directory: %w", err)
	}
	dir, err := os.MkdirTemp(r.scratchDir, "fetch_")
	if err != nil {
		return "", nil, fmt.Errorf("create download directory: %w", err)
	}
	cleanup := func() { removeDir(dir, r.logger) }

	r.logger.Info("Downloading %s", path)
	local, err := r.fetcher.Fetch(ctx, path, dir)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return local, cleanup, nil
}

func asSourceError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var sourceErr *SourceError
	if errors.As(err, &sourceErr) {
		return sourceErr
	}
	return sourceError("Video processing failed: "+err.Error(), err)
}

// FrameSource yields at most maxFrames frames, taking every stride-th frame in order.
// It must be closed on every path.
type FrameSource struct {
	seq       Sequence
	stride    int
	maxFrames int
	index     int
	kept      int
	closed    bool
	cleanup   func()
	logger    *logger.Logger
}

// newFrameSource samples an already opened Sequence.
func newFrameSource(seq Sequence, maxFrames int, logger *logger.Logger) *FrameSource {
	return &FrameSource{
		seq:       seq,
		stride:    max(1, seq.Total()/maxFrames),
		maxFrames: maxFrames,
		logger:    logger,
	}
}

// Stride is the sampling interval.
func (s *FrameSource) Stride() int {
	return s.stride
}

// Kept is the number of frames handed out so far.
func (s *FrameSource) Kept() int {
	return s.kept
}

// Next returns the next sampled frame, or false once maxFrames were returned or the
// source is exhausted. Unreadable frames are skipped and do not count.
func (s *FrameSource) Next() (Frame, bool) {
	for !s.closed && s.kept < s.maxFrames {
		idx := s.index
		s.index++

		if idx%s.stride != 0 {
			if !s.seq.Skip() {
				s.logger.Info("End of video reached at frame %d", idx)
				return Frame{}, false
			}
			continue
		}

		mat, ok := s.seq.Read()
		if !ok {
			s.logger.Info("End of video reached at frame %d", idx)
			return Frame{}, false
		}
		if mat.Empty() {
			s.logger.Info("Frame %d is empty, skipping", idx)
			mat.Close()
			continue
		}

		s.kept++
		return Frame{Index: idx, Mat: mat}, true
	}
	return Frame{}, false
}

// Close releases the backend and any scratch files. It is safe to call more than once.
func (s *FrameSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.seq.Close()
	if s.cleanup != nil {
		s.cleanup()
	}
	return err
}
