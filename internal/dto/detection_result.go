package dto

import "image"

// Detection is one raw model output for a frame. Box is (x1,y1)-(x2,y2) in the
// pixel space of the resized frame.
type Detection struct {
	Box        image.Rectangle `json:"box"`
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
}

// FrameResult is the classification of a single frame.
type FrameResult struct {
	Events      []Event
	Detections  []Detection
	PersonCount int
	Devices     []string // distinct device labels, sorted
}
