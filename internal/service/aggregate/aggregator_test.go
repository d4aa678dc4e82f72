package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"proctor/internal/dto"
)

var (
	noPerson = dto.Event{Type: dto.EventNoPerson, Severity: dto.SeverityMedium, Details: "Student not visible"}
	multi    = dto.Event{Type: dto.EventMultiPerson, Severity: dto.SeverityHigh, Details: "2 persons"}
	phone    = dto.Event{Type: dto.EventPhone, Severity: dto.SeverityHigh, Details: "cell phone"}
	low      = dto.Event{Type: "Glance", Severity: dto.SeverityLow, Details: "looking away"}
)

func TestSummarize_Empty(t *testing.T) {
	verdict := Summarize(nil)

	data, err := json.Marshal(verdict)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"hasViolation":false,"events":[]}` {
		t.Errorf("Unexpected verdict: %s", data)
	}
}

func TestSummarize_TieBreakFirstWins(t *testing.T) {
	verdict := Summarize([]dto.Event{noPerson, multi, phone})

	if verdict.ViolationType != dto.EventMultiPerson || verdict.Details != "2 persons" {
		t.Errorf("Expected first high event to win, got %s / %s", verdict.ViolationType, verdict.Details)
	}
	if verdict.Severity != dto.SeverityHigh {
		t.Errorf("Expected high severity, got %v", verdict.Severity)
	}
	if len(verdict.Events) != 3 {
		t.Errorf("Expected all 3 events to be kept, got %d", len(verdict.Events))
	}
}

func TestSummarize_SingleNoPerson(t *testing.T) {
	verdict := Summarize([]dto.Event{noPerson})

	expected := dto.Verdict{
		HasViolation:  true,
		ViolationType: "No person detected",
		Severity:      dto.SeverityMedium,
		Details:       "Student not visible",
		Events:        []dto.Event{noPerson},
	}
	if diff := cmp.Diff(expected, verdict); diff != "" {
		t.Errorf("Verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_LowThenMedium(t *testing.T) {
	verdict := Summarize([]dto.Event{low, noPerson, low})
	if verdict.ViolationType != dto.EventNoPerson {
		t.Errorf("Expected medium event to win, got %s", verdict.ViolationType)
	}
}

func TestAggregator_EarlyExit(t *testing.T) {
	agg := New()

	if agg.Add([]dto.Event{noPerson}) {
		t.Error("Medium event should not stop aggregation")
	}
	if !agg.Add([]dto.Event{phone}) {
		t.Error("High event should stop aggregation")
	}
	if !agg.Add([]dto.Event{noPerson}) {
		t.Error("Aggregator should stay stopped")
	}
	if agg.Frames() != 2 {
		t.Errorf("Expected 2 folded frames, got %d", agg.Frames())
	}
	if len(agg.Events()) != 2 {
		t.Errorf("Batches after stop must be ignored, got %d events", len(agg.Events()))
	}
}

func TestFold_HighBatchShortCircuits(t *testing.T) {
	high := []dto.Event{multi}
	others := [][]dto.Event{
		nil,
		{noPerson},
		{phone, noPerson},
	}

	alone := Fold([][]dto.Event{high})
	for _, other := range others {
		got := Fold([][]dto.Event{high, other})
		if diff := cmp.Diff(alone, got); diff != "" {
			t.Errorf("Batches after a high batch changed the verdict (-want +got):\n%s", diff)
		}
	}
}

func TestFold_Deterministic(t *testing.T) {
	batches := [][]dto.Event{{noPerson}, nil, {low}, {noPerson, phone}, {multi}}

	first := Fold(batches)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Fold(batches)); diff != "" {
			t.Fatalf("Fold is not deterministic (-want +got):\n%s", diff)
		}
	}
	if len(first.Events) != 4 {
		t.Errorf("Expected fold to stop after the phone batch with 4 events, got %d", len(first.Events))
	}
	if first.ViolationType != dto.EventPhone {
		t.Errorf("Expected phone violation, got %s", first.ViolationType)
	}
}

func TestFold_NoEvents(t *testing.T) {
	verdict := Fold([][]dto.Event{nil, nil, {}})
	if verdict.HasViolation {
		t.Error("Expected no violation")
	}
	if verdict.Events == nil || len(verdict.Events) != 0 {
		t.Errorf("Expected empty non-nil events, got %#v", verdict.Events)
	}
}
