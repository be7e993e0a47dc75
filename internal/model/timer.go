package model

import "time"

type ListType string

const (
	ListTypeSimple  ListType = "simple"
	ListTypeDetail  ListType = "detail"
	ListTypeInitial ListType = "initial"
)

type NotificationType string

const (
	NotificationVibration NotificationType = "vibration"
	NotificationAlarm     NotificationType = "alarm"
)

// NoPresetsDetail is the detail text of a timer without preset timers.
const NoPresetsDetail = "No preset timers"

const (
	DefaultMaxNameLength = 20
	DefaultMaxTimers     = 50
	DefaultMaxPresets    = 30
)

// Timer is a named container of sequential preset timers. TotalMillis,
// ListType and Detail are derived from the presets and rewritten on every
// preset mutation.
type Timer struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	Name             string           `json:"name"`
	TotalMillis      int64            `json:"totalMillis"`
	ListType         ListType         `json:"listType"`
	NotificationType NotificationType `json:"notificationType"`
	Detail           string           `json:"detail"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// PresetTimer is one countdown segment of a Timer. TimerOrder is 1-based and
// dense within its parent.
type PresetTimer struct {
	ID                     string    `json:"id"`
	TimerID                string    `json:"timerId"`
	TimerName              string    `json:"timerName"`
	PresetName             string    `json:"presetName"`
	TimerOrder             int       `json:"timerOrder"`
	PresetTimeMillis       int64     `json:"presetTimeMillis"`
	NotificationTimeMillis int64     `json:"notificationTimeMillis"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// TimerWithPresets is a timer joined with its presets ordered by TimerOrder.
type TimerWithPresets struct {
	Timer
	Presets []PresetTimer `json:"presets"`
}

func IsValidNotificationType(value NotificationType) bool {
	return value == NotificationVibration || value == NotificationAlarm
}
