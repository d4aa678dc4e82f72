package proctor

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"
	"proctor/internal/dto"
)

func detections(labels ...string) []dto.Detection {
	out := make([]dto.Detection, 0, len(labels))
	for _, label := range labels {
		out = append(out, dto.Detection{Label: label, Confidence: 0.9})
	}
	return out
}

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		labels   []string
		expected []dto.Event
	}{
		{
			name:     "single person is normal",
			labels:   []string{"person"},
			expected: nil,
		},
		{
			name:   "nobody",
			labels: nil,
			expected: []dto.Event{
				{Type: dto.EventNoPerson, Severity: dto.SeverityMedium, Details: "Student not visible"},
			},
		},
		{
			name:   "two persons",
			labels: []string{"person", "person"},
			expected: []dto.Event{
				{Type: dto.EventMultiPerson, Severity: dto.SeverityHigh, Details: "2 persons"},
			},
		},
		{
			name:   "person with phone",
			labels: []string{"person", "cell phone"},
			expected: []dto.Event{
				{Type: dto.EventPhone, Severity: dto.SeverityHigh, Details: "cell phone"},
			},
		},
		{
			name:   "nobody with laptop",
			labels: []string{"laptop"},
			expected: []dto.Event{
				{Type: dto.EventNoPerson, Severity: dto.SeverityMedium, Details: "Student not visible"},
				{Type: dto.EventDevice, Severity: dto.SeverityHigh, Details: "laptop"},
			},
		},
		{
			name:   "crowd with devices",
			labels: []string{"person", "book", "person", "person", "Mobile Phone", "book", "mouse"},
			expected: []dto.Event{
				{Type: dto.EventMultiPerson, Severity: dto.SeverityHigh, Details: "3 persons"},
				{Type: dto.EventPhone, Severity: dto.SeverityHigh, Details: "Mobile Phone, book, mouse"},
			},
		},
		{
			name:     "unrelated objects",
			labels:   []string{"person", "cup", "chair"},
			expected: nil,
		},
	}

	classifier := NewClassifier(DefaultPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(detections(tt.labels...))
			if diff := cmp.Diff(tt.expected, result.Events); diff != "" {
				t.Errorf("Events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassify_PersonEventsExclusive(t *testing.T) {
	classifier := NewClassifier(DefaultPolicy())

	for count := 0; count <= 5; count++ {
		labels := make([]string, count)
		for i := range labels {
			labels[i] = "person"
		}
		result := classifier.Classify(detections(labels...))

		var noPerson, multi int
		for _, e := range result.Events {
			switch e.Type {
			case dto.EventNoPerson:
				noPerson++
			case dto.EventMultiPerson:
				multi++
			}
		}
		if noPerson+multi > 1 {
			t.Errorf("count=%d: both person events fired", count)
		}
		if (count == 0) != (noPerson == 1) {
			t.Errorf("count=%d: no-person event mismatch", count)
		}
		if (count > 1) != (multi == 1) {
			t.Errorf("count=%d: multi-person event mismatch", count)
		}
		if result.PersonCount != count {
			t.Errorf("Expected person count %d, got %d", count, result.PersonCount)
		}
	}
}

func TestClassify_PersonLabelIsExact(t *testing.T) {
	classifier := NewClassifier(DefaultPolicy())

	result := classifier.Classify(detections("Person", "persons"))
	if result.PersonCount != 0 {
		t.Errorf("Only the exact label should count, got %d", result.PersonCount)
	}
}

func TestClassify_DeviceSetDeduplicated(t *testing.T) {
	classifier := NewClassifier(DefaultPolicy())

	result := classifier.Classify(detections("person", "tablet", "keyboard", "tablet", "keyboard"))
	if diff := cmp.Diff([]string{"keyboard", "tablet"}, result.Devices); diff != "" {
		t.Errorf("Devices mismatch (-want +got):\n%s", diff)
	}

	var deviceEvents int
	for _, e := range result.Events {
		if e.Type == dto.EventDevice || e.Type == dto.EventPhone {
			deviceEvents++
			if e.Details != "keyboard, tablet" {
				t.Errorf("Expected details 'keyboard, tablet', got %q", e.Details)
			}
		}
	}
	if deviceEvents != 1 {
		t.Errorf("Expected exactly one device event, got %d", deviceEvents)
	}
}

func TestClassify_CustomThreshold(t *testing.T) {
	policy := DefaultPolicy()
	policy.MultiPersonThreshold = 2
	classifier := NewClassifier(policy)

	if events := classifier.Classify(detections("person", "person")).Events; len(events) != 0 {
		t.Errorf("Two persons under threshold 2 should be normal, got %v", events)
	}
	if events := classifier.Classify(detections("person", "person", "person")).Events; len(events) != 1 {
		t.Errorf("Three persons should trigger, got %v", events)
	}
}

func TestIsDevice(t *testing.T) {
	classifier := NewClassifier(DefaultPolicy())

	tests := []struct {
		label    string
		expected bool
	}{
		{"cell phone", true},
		{"Cell Phone", true},
		{"smartphone", true},
		{"laptop", true},
		{"notebook", true},
		{"wireless mouse", true},
		{"person", false},
		{"cup", false},
		{"tv", false},
	}

	for _, tt := range tests {
		if got := classifier.IsDevice(tt.label); got != tt.expected {
			t.Errorf("IsDevice(%q) = %v, expected %v", tt.label, got, tt.expected)
		}
	}
}

type stubDetector struct {
	detections []dto.Detection
	err        error
}

func (d stubDetector) Detect(frame gocv.Mat) ([]dto.Detection, error) {
	return d.detections, d.err
}

func TestAnalyze(t *testing.T) {
	c := NewClassifier(DefaultPolicy())
	frame := gocv.NewMat()
	defer frame.Close()

	result, err := c.Analyze(stubDetector{detections: detections("person", "person", "laptop")}, frame)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	expected := []dto.Event{
		{Type: dto.EventMultiPerson, Severity: dto.SeverityHigh, Details: "2 persons"},
		{Type: dto.EventDevice, Severity: dto.SeverityHigh, Details: "laptop"},
	}
	if diff := cmp.Diff(expected, result.Events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.Analyze(stubDetector{err: errors.New("no model")}, frame); err == nil {
		t.Error("Expected detector error to be returned")
	}
}
