// Package transfer converts timers to and from a portable YAML document.
package transfer

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"multitimer/internal/model"
)

const CurrentVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported document version")

type Document struct {
	Version int           `yaml:"version"`
	Timers  []TimerRecord `yaml:"timers"`
}

type TimerRecord struct {
	Name         string         `yaml:"name"`
	Notification string         `yaml:"notification,omitempty"`
	Presets      []PresetRecord `yaml:"presets"`
}

// PresetRecord stores durations in time.Duration notation, e.g. "1m30s".
type PresetRecord struct {
	Name     string `yaml:"name"`
	Duration string `yaml:"duration"`
	Notify   string `yaml:"notify,omitempty"`
}

// FromTimers builds a document from timers and the presets of those timers.
// Presets are matched to timers by TimerID and kept in TimerOrder.
func FromTimers(timers []model.Timer, presets []model.PresetTimer) Document {
	byTimer := make(map[string][]model.PresetTimer, len(timers))
	for _, preset := range presets {
		byTimer[preset.TimerID] = append(byTimer[preset.TimerID], preset)
	}

	doc := Document{Version: CurrentVersion, Timers: make([]TimerRecord, 0, len(timers))}
	for _, timer := range timers {
		record := TimerRecord{
			Name:         timer.Name,
			Notification: string(timer.NotificationType),
			Presets:      make([]PresetRecord, 0, len(byTimer[timer.ID])),
		}
		for _, preset := range byTimer[timer.ID] {
			entry := PresetRecord{
				Name:     preset.PresetName,
				Duration: formatMillis(preset.PresetTimeMillis),
			}
			if preset.NotificationTimeMillis > 0 {
				entry.Notify = formatMillis(preset.NotificationTimeMillis)
			}
			record.Presets = append(record.Presets, entry)
		}
		doc.Timers = append(doc.Timers, record)
	}
	return doc
}

// Records converts the document into unsaved timers. Preset order follows the
// document; values are not validated beyond parsing.
func (d Document) Records() ([]model.TimerWithPresets, error) {
	timers := make([]model.TimerWithPresets, 0, len(d.Timers))
	for i, record := range d.Timers {
		timer := model.TimerWithPresets{
			Timer: model.Timer{
				Name:             record.Name,
				NotificationType: model.NotificationType(record.Notification),
			},
			Presets: make([]model.PresetTimer, 0, len(record.Presets)),
		}
		for j, entry := range record.Presets {
			duration, err := parseMillis(entry.Duration)
			if err != nil {
				return nil, fmt.Errorf("timer %d preset %d duration: %w", i+1, j+1, err)
			}
			var notify int64
			if entry.Notify != "" {
				if notify, err = parseMillis(entry.Notify); err != nil {
					return nil, fmt.Errorf("timer %d preset %d notify: %w", i+1, j+1, err)
				}
			}
			timer.Presets = append(timer.Presets, model.PresetTimer{
				PresetName:             entry.Name,
				TimerName:              record.Name,
				TimerOrder:             j + 1,
				PresetTimeMillis:       duration,
				NotificationTimeMillis: notify,
			})
		}
		timers = append(timers, timer)
	}
	return timers, nil
}

func Encode(doc Document) ([]byte, error) {
	serialized, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal timers yaml: %w", err)
	}
	return serialized, nil
}

func Decode(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse timers yaml: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = CurrentVersion
	}
	if doc.Version != CurrentVersion {
		return doc, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return doc, nil
}

// WriteFile stores doc at path on fs, creating parent directories.
func WriteFile(fs afero.Fs, path string, doc Document) error {
	serialized, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, serialized, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func ReadFile(fs afero.Fs, path string) (Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Document{}, fmt.Errorf("read import file: %w", err)
	}
	return Decode(data)
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func parseMillis(raw string) (int64, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}
