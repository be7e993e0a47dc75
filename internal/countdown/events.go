package countdown

import "time"

// Status is the lifecycle state of a countdown.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

// EventType identifies what happened during a countdown.
type EventType string

const (
	EventTick            EventType = "tick"
	EventPreNotification EventType = "pre_notification"
	EventSegmentFinished EventType = "segment_finished"
	EventFinished        EventType = "finished"
	EventPaused          EventType = "paused"
	EventResumed         EventType = "resumed"
	EventCancelled       EventType = "cancelled"
)

// Event reports countdown progress. PresetName and TimerOrder describe the
// segment the event belongs to; for EventSegmentFinished that is the segment
// that just ended.
type Event struct {
	Type             EventType
	TimerName        string
	PresetName       string
	TimerOrder       int
	SegmentRemaining time.Duration
	TotalRemaining   time.Duration
	At               time.Time
}

// Milestone reports whether the event must not be dropped for slow
// subscribers.
func (e Event) Milestone() bool {
	switch e.Type {
	case EventPreNotification, EventSegmentFinished, EventFinished:
		return true
	default:
		return false
	}
}

// Snapshot is a point-in-time view of a countdown.
type Snapshot struct {
	TimerName         string
	Status            Status
	PresetName        string
	TimerOrder        int
	SegmentRemaining  time.Duration
	TotalRemaining    time.Duration
	Elapsed           time.Duration
	Planned           time.Duration
	RemainingSegments int
	PreNotified       bool
}
