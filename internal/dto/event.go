package dto

const (
	EventNoPerson    = "No person detected"
	EventMultiPerson = "Multiple faces detected"
	EventPhone       = "Phone detected"
	EventDevice      = "Device detected"
)

// Event is a domain-level anomaly derived from one frame.
type Event struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Details  string   `json:"details"`
}
