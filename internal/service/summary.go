package service

import (
	"fmt"
	"strings"
	"time"

	"multitimer/internal/model"
)

// Summarize derives a timer's total, list layout and detail text from its
// presets, which must already be in TimerOrder.
func Summarize(presets []model.PresetTimer) (int64, model.ListType, string) {
	if len(presets) == 0 {
		return 0, model.ListTypeSimple, model.NoPresetsDetail
	}

	var total int64
	lines := make([]string, 0, len(presets))
	for _, preset := range presets {
		total += preset.PresetTimeMillis
		line := fmt.Sprintf("%d. %s %s", preset.TimerOrder, preset.PresetName, FormatClock(preset.PresetTimeMillis))
		if preset.NotificationTimeMillis > 0 {
			line += fmt.Sprintf(" (notify %s)", FormatClock(preset.NotificationTimeMillis))
		}
		lines = append(lines, line)
	}

	listType := model.ListTypeSimple
	if len(presets) >= 2 {
		listType = model.ListTypeDetail
	}
	return total, listType, strings.Join(lines, "\n")
}

// FormatClock renders milliseconds as m:ss, or h:mm:ss from one hour up.
// Partial seconds are dropped.
func FormatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	hours := int64(d / time.Hour)
	minutes := int64(d/time.Minute) % 60
	seconds := int64(d/time.Second) % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func applySummary(timer *model.Timer, presets []model.PresetTimer) {
	timer.TotalMillis, timer.ListType, timer.Detail = Summarize(presets)
}

// listRows returns timers for display, or a single placeholder row when
// there are none.
func listRows(timers []model.Timer) []model.Timer {
	if len(timers) == 0 {
		return []model.Timer{{ListType: model.ListTypeInitial}}
	}
	return timers
}
