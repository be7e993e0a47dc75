package model

import "time"

const (
	RunStatusRunning   = "running"
	RunStatusPaused    = "paused"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
)

// TimerRun is the history record of one countdown over a timer.
type TimerRun struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	TimerID       string     `json:"timerId"`
	TimerName     string     `json:"timerName"`
	Status        string     `json:"status"`
	PlannedMillis int64      `json:"plannedMillis"`
	ElapsedMillis int64      `json:"elapsedMillis"`
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
