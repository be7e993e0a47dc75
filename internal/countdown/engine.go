package countdown

import (
	"errors"
	"sort"
	"time"

	"multitimer/internal/model"
)

var ErrNoSegments = errors.New("countdown needs at least one preset timer")

// Engine advances through preset timers in TimerOrder. It is not safe for
// concurrent use; Runner owns one per running timer.
type Engine struct {
	timerName   string
	current     model.PresetTimer
	queue       []model.PresetTimer
	remaining   time.Duration
	rest        time.Duration
	planned     time.Duration
	elapsed     time.Duration
	preNotified bool
	status      Status
}

// New starts a countdown over presets. The first segment begins immediately.
func New(timerName string, presets []model.PresetTimer) (*Engine, error) {
	if len(presets) == 0 {
		return nil, ErrNoSegments
	}

	ordered := append([]model.PresetTimer(nil), presets...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TimerOrder < ordered[j].TimerOrder
	})

	var total time.Duration
	for _, preset := range ordered {
		total += millis(preset.PresetTimeMillis)
	}

	engine := &Engine{
		timerName: timerName,
		queue:     ordered,
		rest:      total,
		planned:   total,
		status:    StatusRunning,
	}
	engine.beginSegment()
	return engine, nil
}

// Advance applies elapsed time as one tick and returns the resulting events.
// Time left over after a segment expires carries into the next segment. It
// does nothing unless the countdown is running.
func (e *Engine) Advance(elapsed time.Duration, now time.Time) []Event {
	if e.status != StatusRunning {
		return nil
	}
	if elapsed < 0 {
		elapsed = 0
	}

	var events []Event
	for {
		step := elapsed
		if step > e.remaining {
			step = e.remaining
		}
		e.remaining -= step
		e.elapsed += step
		elapsed -= step

		events = append(events, e.event(EventTick, now))

		// Pre-notification is checked before expiry so that a segment whose
		// notification time equals its duration still reports it.
		notify := millis(e.current.NotificationTimeMillis)
		if notify > 0 && e.remaining <= notify && !e.preNotified {
			e.preNotified = true
			events = append(events, e.event(EventPreNotification, now))
		}

		if e.remaining > 0 {
			return events
		}

		if len(e.queue) == 0 {
			e.status = StatusFinished
			events = append(events, e.event(EventFinished, now))
			return events
		}

		events = append(events, e.event(EventSegmentFinished, now))
		e.beginSegment()
		if elapsed == 0 {
			return events
		}
	}
}

func (e *Engine) beginSegment() {
	e.current = e.queue[0]
	e.queue = e.queue[1:]
	e.preNotified = false
	e.remaining = millis(e.current.PresetTimeMillis)
	e.rest -= e.remaining
}

// Pause freezes the countdown. It reports whether the state changed.
func (e *Engine) Pause() bool {
	if e.status != StatusRunning {
		return false
	}
	e.status = StatusPaused
	return true
}

// Resume continues a paused countdown from the retained remaining time.
func (e *Engine) Resume() bool {
	if e.status != StatusPaused {
		return false
	}
	e.status = StatusRunning
	return true
}

// Cancel stops a countdown that has not finished.
func (e *Engine) Cancel() bool {
	if e.status == StatusFinished || e.status == StatusCancelled {
		return false
	}
	e.status = StatusCancelled
	return true
}

func (e *Engine) Status() Status {
	return e.status
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		TimerName:         e.timerName,
		Status:            e.status,
		PresetName:        e.current.PresetName,
		TimerOrder:        e.current.TimerOrder,
		SegmentRemaining:  e.remaining,
		TotalRemaining:    e.remaining + e.rest,
		Elapsed:           e.elapsed,
		Planned:           e.planned,
		RemainingSegments: len(e.queue),
		PreNotified:       e.preNotified,
	}
}

func (e *Engine) event(eventType EventType, now time.Time) Event {
	return Event{
		Type:             eventType,
		TimerName:        e.timerName,
		PresetName:       e.current.PresetName,
		TimerOrder:       e.current.TimerOrder,
		SegmentRemaining: e.remaining,
		TotalRemaining:   e.remaining + e.rest,
		At:               now,
	}
}

func millis(value int64) time.Duration {
	return time.Duration(value) * time.Millisecond
}
