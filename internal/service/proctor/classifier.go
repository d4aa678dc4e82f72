package proctor

import (
	"fmt"
	"sort"
	"strings"

	"proctor/internal/config"
	"proctor/internal/dto"

	"gocv.io/x/gocv"
)

// Detector produces the raw detections for one frame.
type Detector interface {
	Detect(frame gocv.Mat) ([]dto.Detection, error)
}

// Policy decides which detections count as persons or disallowed devices.
type Policy struct {
	PersonLabel          string
	MultiPersonThreshold int      // more persons than this is a violation
	DeviceKeywords       []string // lower-case substrings
}

// DefaultPolicy returns the stock exam policy.
func DefaultPolicy() Policy {
	return NewPolicy(&config.Config{
		PersonLabel:          "person",
		MultiPersonThreshold: 1,
		DeviceKeywords:       config.DefaultDeviceKeywords,
	})
}

// NewPolicy builds a Policy from configuration.
func NewPolicy(cfg *config.Config) Policy {
	keywords := make([]string, 0, len(cfg.DeviceKeywords))
	for _, keyword := range cfg.DeviceKeywords {
		keywords = append(keywords, strings.ToLower(keyword))
	}
	return Policy{
		PersonLabel:          cfg.PersonLabel,
		MultiPersonThreshold: cfg.MultiPersonThreshold,
		DeviceKeywords:       keywords,
	}
}

// Classifier turns one frame's detections into events.
type Classifier struct {
	policy Policy
}

func NewClassifier(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

// IsDevice reports whether label contains any device keyword, ignoring case.
func (c *Classifier) IsDevice(label string) bool {
	lower := strings.ToLower(label)
	for _, keyword := range c.policy.DeviceKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Classify maps detections to at most one person event and at most one device event,
// in that order.
func (c *Classifier) Classify(detections []dto.Detection) dto.FrameResult {
	personCount := 0
	devices := make(map[string]struct{})

	for _, detection := range detections {
		if detection.Label == c.policy.PersonLabel {
			personCount++
		}
		if c.IsDevice(detection.Label) {
			devices[detection.Label] = struct{}{}
		}
	}

	var events []dto.Event
	switch {
	case personCount == 0:
		events = append(events, dto.Event{
			Type:     dto.EventNoPerson,
			Severity: dto.SeverityMedium,
			Details:  "Student not visible",
		})
	case personCount > c.policy.MultiPersonThreshold:
		events = append(events, dto.Event{
			Type:     dto.EventMultiPerson,
			Severity: dto.SeverityHigh,
			Details:  fmt.Sprintf("%d persons", personCount),
		})
	}

	deviceList := make([]string, 0, len(devices))
	for label := range devices {
		deviceList = append(deviceList, label)
	}
	sort.Strings(deviceList)

	if len(deviceList) > 0 {
		eventType := dto.EventDevice
		for _, label := range deviceList {
			if strings.Contains(strings.ToLower(label), "phone") {
				eventType = dto.EventPhone
				break
			}
		}
		events = append(events, dto.Event{
			Type:     eventType,
			Severity: dto.SeverityHigh,
			Details:  strings.Join(deviceList, ", "),
		})
	}

	return dto.FrameResult{
		Events:      events,
		Detections:  detections,
		PersonCount: personCount,
		Devices:     deviceList,
	}
}

// Analyze detects objects in frame and classifies them.
func (c *Classifier) Analyze(detector Detector, frame gocv.Mat) (dto.FrameResult, error) {
	detections, err := detector.Detect(frame)
	if err != nil {
		return dto.FrameResult{}, err
	}
	return c.Classify(detections), nil
}
