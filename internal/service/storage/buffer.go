package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"proctor/internal/config"
	"proctor/internal/dto"
	"proctor/internal/logger"
)

const timestampLayout = "2006-01-02_15-04-05.000"

// Snapshot is one annotated frame captured when a violation was seen.
type Snapshot struct {
	Timestamp time.Time
	Session   string
	Frame     int
	Events    []dto.Event
	Data      []byte
}

// BufferService keeps violation snapshots in memory and periodically flushes them to disk.
type BufferService struct {
	dir       string
	limit     int
	snapshots []Snapshot
	dropped   int
	mu        sync.Mutex
	logger    *logger.Logger
	now       func() time.Time
}

// NewBufferService creates a BufferService writing into config.EvidenceDirectory.
func NewBufferService(config *config.Config, logger *logger.Logger) *BufferService {
	return &BufferService{
		dir:       config.EvidenceDirectory,
		limit:     config.EvidenceLimit,
		snapshots: make([]Snapshot, 0),
		logger:    logger,
		now:       time.Now,
	}
}

// Run flushes on every tick until ctx is done, then flushes one last time.
func (s *BufferService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Add buffers a snapshot. Once the buffer holds limit snapshots further ones are
// dropped until the next flush.
func (s *BufferService) Add(data []byte, session string, frame int, events []dto.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) >= s.limit {
		s.dropped++
		return false
	}

	s.snapshots = append(s.snapshots, Snapshot{
		Timestamp: s.now(),
		Session:   session,
		Frame:     frame,
		Events:    events,
		Data:      data,
	})
	s.logger.Info("Evidence buffer size: %d/%d", len(s.snapshots), s.limit)
	return true
}

// Flush writes buffered snapshots to disk and clears the buffer. It returns how many
// files were written.
func (s *BufferService) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, snapshot := range s.snapshots {
		filename := SnapshotName(snapshot)
		if err := os.WriteFile(filepath.Join(s.dir, filename), snapshot.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}
		savedCount++
	}

	if s.dropped > 0 {
		s.logger.Warning("Evidence buffer was full - %d snapshots dropped", s.dropped)
	}
	s.logger.Info("Flushed %d snapshots to disk", savedCount)
	s.snapshots = s.snapshots[:0]
	s.dropped = 0
	return savedCount
}

// SnapshotName builds "<timestamp>_<session>_<frame>_<event types>.jpg".
func SnapshotName(snapshot Snapshot) string {
	var kinds []string
	for _, event := range snapshot.Events {
		kinds = append(kinds, strings.ReplaceAll(strings.ToLower(event.Type), " ", "-"))
	}
	return fmt.Sprintf("%s_%s_%06d_%s.jpg",
		snapshot.Timestamp.Format(timestampLayout), snapshot.Session, snapshot.Frame, strings.Join(kinds, "_"))
}
