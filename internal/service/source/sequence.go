package source

import (
	"context"

	"gocv.io/x/gocv"
)

// Sequence is an opened, ordered run of frames from one backend.
type Sequence interface {
	// Total is the number of frames (or extracted images) when known, at least 1.
	Total() int
	// Skip advances past the next frame without keeping it. It reports false at the end.
	Skip() bool
	// Read decodes the next frame. An unreadable frame comes back empty with ok true;
	// ok is false at the end. The caller owns the returned Mat.
	Read() (frame gocv.Mat, ok bool)
	Close() error
}

// Opener tries to open path as a Sequence. Returning an error wrapping ErrUnavailable
// hands the source to the next Opener; any other error ends the attempt.
type Opener interface {
	Name() string
	Open(ctx context.Context, path string, format Format) (Sequence, error)
}
