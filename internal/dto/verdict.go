package dto

import "encoding/json"

// Verdict is the final judgment of one analysis run.
type Verdict struct {
	HasViolation  bool
	ViolationType string
	Severity      Severity
	Details       string
	Events        []Event
	Error         string
}

// ErrorVerdict reports a failed analysis.
func ErrorVerdict(message string) Verdict {
	return Verdict{Error: message}
}

// MarshalJSON emits the external result shape: events are always present (possibly empty)
// unless the run failed, and violation fields only appear with a violation.
func (v Verdict) MarshalJSON() ([]byte, error) {
	out := struct {
		HasViolation  bool     `json:"hasViolation"`
		ViolationType string   `json:"violationType,omitempty"`
		Severity      Severity `json:"severity,omitempty"`
		Details       string   `json:"details,omitempty"`
		Events        *[]Event `json:"events,omitempty"`
		Error         string   `json:"error,omitempty"`
	}{
		HasViolation: v.HasViolation,
		Error:        v.Error,
	}

	if v.HasViolation {
		out.ViolationType = v.ViolationType
		out.Severity = v.Severity
		out.Details = v.Details
	}
	if v.Error == "" {
		events := v.Events
		if events == nil {
			events = []Event{}
		}
		out.Events = &events
	}
	return json.Marshal(out)
}
