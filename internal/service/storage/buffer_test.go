package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"proctor/internal/config"
	"proctor/internal/dto"
	"proctor/internal/logger"
)

func newTestBuffer(t *testing.T, limit int) *BufferService {
	t.Helper()

	cfg := &config.Config{
		EvidenceDirectory: filepath.Join(t.TempDir(), "evidence"),
		EvidenceLimit:     limit,
	}
	s := NewBufferService(cfg, logger.New(io.Discard, true))
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return s
}

func TestSnapshotName(t *testing.T) {
	name := SnapshotName(Snapshot{
		Timestamp: time.Date(2026, 3, 1, 9, 30, 5, 250e6, time.UTC),
		Session:   "abc",
		Frame:     42,
		Events: []dto.Event{
			{Type: dto.EventMultiPerson, Severity: dto.SeverityHigh},
			{Type: dto.EventPhone, Severity: dto.SeverityHigh},
		},
	})

	expected := "2026-03-01_09-30-05.250_abc_000042_multiple-faces-detected_phone-detected.jpg"
	if name != expected {
		t.Errorf("Expected %q, got %q", expected, name)
	}
}

func TestBuffer_LimitAndFlush(t *testing.T) {
	s := newTestBuffer(t, 2)
	events := []dto.Event{{Type: dto.EventPhone, Severity: dto.SeverityHigh}}

	if !s.Add([]byte("one"), "s", 1, events) || !s.Add([]byte("two"), "s", 2, events) {
		t.Fatal("Expected first two snapshots to be buffered")
	}
	if s.Add([]byte("three"), "s", 3, events) {
		t.Error("Expected snapshot beyond limit to be dropped")
	}

	if saved := s.Flush(); saved != 2 {
		t.Fatalf("Expected 2 snapshots flushed, got %d", saved)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatalf("Failed to read evidence directory: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 files on disk, got %d", len(entries))
	}

	if saved := s.Flush(); saved != 0 {
		t.Errorf("Expected empty buffer after flush, got %d", saved)
	}
	if !s.Add([]byte("four"), "s", 4, events) {
		t.Error("Expected buffer to accept snapshots again after flush")
	}
}
