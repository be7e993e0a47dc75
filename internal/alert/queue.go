// Package alert holds notifications produced by running timers until a
// client collects them. Each alert is handed out exactly once.
package alert

import (
	"sync"
	"time"

	"multitimer/internal/model"
)

type Kind string

const (
	KindPreNotification Kind = "pre_notification"
	KindSegmentFinished Kind = "segment_finished"
	KindFinished        Kind = "finished"
)

// Alert asks the client to vibrate or sound an alarm.
type Alert struct {
	Seq              uint64                 `json:"seq"`
	Kind             Kind                   `json:"kind"`
	TimerName        string                 `json:"timerName"`
	PresetName       string                 `json:"presetName"`
	TimerOrder       int                    `json:"timerOrder"`
	NotificationType model.NotificationType `json:"notificationType"`
	At               time.Time              `json:"at"`
}

// Queue is a single-consumer alert buffer. Take empties it atomically, so an
// alert observed by one Take is never returned again.
type Queue struct {
	mu    sync.Mutex
	items []Alert
	seq   uint64
	limit int
}

// NewQueue returns a queue that keeps at most limit pending alerts, dropping
// the oldest. A limit <= 0 means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

func (q *Queue) Push(alert Alert) Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	alert.Seq = q.seq
	q.items = append(q.items, alert)
	if q.limit > 0 && len(q.items) > q.limit {
		q.items = append([]Alert(nil), q.items[len(q.items)-q.limit:]...)
	}
	return alert
}

func (q *Queue) Take() []Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	if items == nil {
		return []Alert{}
	}
	return items
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
