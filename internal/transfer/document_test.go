package transfer

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"multitimer/internal/model"
)

func sampleTimers() ([]model.Timer, []model.PresetTimer) {
	timers := []model.Timer{
		{ID: "t1", Name: "tea", NotificationType: model.NotificationAlarm},
		{ID: "t2", Name: "empty", NotificationType: model.NotificationVibration},
	}
	presets := []model.PresetTimer{
		{TimerID: "t1", PresetName: "boil", TimerOrder: 1, PresetTimeMillis: 60000},
		{TimerID: "t1", PresetName: "steep", TimerOrder: 2, PresetTimeMillis: 90000, NotificationTimeMillis: 15000},
	}
	return timers, presets
}

func TestFromTimersFormatsDurations(t *testing.T) {
	doc := FromTimers(sampleTimers())
	if doc.Version != CurrentVersion || len(doc.Timers) != 2 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	tea := doc.Timers[0]
	if tea.Notification != "alarm" || len(tea.Presets) != 2 {
		t.Fatalf("unexpected tea record: %+v", tea)
	}
	if tea.Presets[1].Duration != "1m30s" || tea.Presets[1].Notify != "15s" {
		t.Fatalf("unexpected preset record: %+v", tea.Presets[1])
	}
	if tea.Presets[0].Notify != "" {
		t.Fatalf("notify should be omitted when zero, got %q", tea.Presets[0].Notify)
	}
	if len(doc.Timers[1].Presets) != 0 {
		t.Fatalf("empty timer should have no presets: %+v", doc.Timers[1])
	}
}

func TestFileRoundTripOnMemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := FromTimers(sampleTimers())

	if err := WriteFile(fs, "/exports/timers.yaml", doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	read, err := ReadFile(fs, "/exports/timers.yaml")
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	timers, err := read.Records()
	if err != nil {
		t.Fatalf("timers: %v", err)
	}
	if len(timers) != 2 || timers[0].Name != "tea" || timers[0].NotificationType != model.NotificationAlarm {
		t.Fatalf("unexpected timers: %+v", timers)
	}
	steep := timers[0].Presets[1]
	if steep.PresetName != "steep" || steep.TimerOrder != 2 || steep.PresetTimeMillis != 90000 || steep.NotificationTimeMillis != 15000 {
		t.Fatalf("unexpected preset: %+v", steep)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := Decode([]byte("version: 7\ntimers: []\n")); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
	if _, err := Decode([]byte("timers: [")); err == nil {
		t.Fatal("expected parse error")
	}

	doc, err := Decode([]byte("timers:\n  - name: x\n    presets:\n      - name: a\n        duration: soon\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := doc.Records(); err == nil || !strings.Contains(err.Error(), "duration") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(afero.NewMemMapFs(), "/nope.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
