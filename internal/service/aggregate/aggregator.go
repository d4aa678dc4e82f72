package aggregate

import "proctor/internal/dto"

// Aggregator folds per-frame event batches into one Verdict. Once any accumulated
// event is high severity, Add reports that the caller should stop feeding frames.
type Aggregator struct {
	events  []dto.Event
	frames  int
	stopped bool
}

func New() *Aggregator {
	return &Aggregator{events: make([]dto.Event, 0)}
}

// Add appends one frame's events and reports whether aggregation should stop.
// Batches added after a stop are ignored.
func (a *Aggregator) Add(batch []dto.Event) bool {
	if a.stopped {
		return true
	}
	a.frames++
	a.events = append(a.events, batch...)
	for _, event := range a.events {
		if event.Severity == dto.SeverityHigh {
			a.stopped = true
			break
		}
	}
	return a.stopped
}

// Stopped reports whether a high severity event has been seen.
func (a *Aggregator) Stopped() bool {
	return a.stopped
}

// Frames is the number of batches folded so far.
func (a *Aggregator) Frames() int {
	return a.frames
}

// Events returns the accumulated events in arrival order.
func (a *Aggregator) Events() []dto.Event {
	return a.events
}

// Verdict summarises everything accumulated so far.
func (a *Aggregator) Verdict() dto.Verdict {
	return Summarize(a.events)
}

// Fold runs batches through a fresh Aggregator, honouring the early stop.
func Fold(batches [][]dto.Event) dto.Verdict {
	agg := New()
	for _, batch := range batches {
		if agg.Add(batch) {
			break
		}
	}
	return agg.Verdict()
}

// Summarize picks the first event with the highest severity as the representative one.
func Summarize(events []dto.Event) dto.Verdict {
	if len(events) == 0 {
		return dto.Verdict{HasViolation: false, Events: []dto.Event{}}
	}

	best := events[0]
	for _, event := range events[1:] {
		if event.Severity > best.Severity {
			best = event
		}
	}

	all := make([]dto.Event, len(events))
	copy(all, events)
	return dto.Verdict{
		HasViolation:  true,
		ViolationType: best.Type,
		Severity:      best.Severity,
		Details:       best.Details,
		Events:        all,
	}
}
