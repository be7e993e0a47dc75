package service

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"multitimer/internal/model"
)

func TestTimerServiceCreateStartsEmpty(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	rows, apiErr := svc.List(ctx, "u1")
	if apiErr != nil {
		t.Fatalf("list: %s", apiErr.Message)
	}
	if len(rows) != 1 || rows[0].ListType != model.ListTypeInitial {
		t.Fatalf("expected placeholder row, got %+v", rows)
	}

	timer := mustCreate(t, svc, "u1", "  tea  ")
	if timer.Name != "tea" || timer.TotalMillis != 0 || timer.Detail != model.NoPresetsDetail {
		t.Fatalf("unexpected new timer: %+v", timer.Timer)
	}
	if timer.NotificationType != model.NotificationVibration {
		t.Fatalf("expected vibration default, got %s", timer.NotificationType)
	}
}

func TestTimerServiceValidation(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	cases := []struct {
		name string
		code string
	}{
		{"", "empty_name"},
		{"   ", "empty_name"},
		{strings.Repeat("x", 21), "name_too_long"},
	}
	for _, tc := range cases {
		if _, apiErr := svc.Create(ctx, "u1", tc.name); apiErr == nil || apiErr.Code != tc.code {
			t.Fatalf("create %q: expected %s, got %+v", tc.name, tc.code, apiErr)
		}
	}

	mustCreate(t, svc, "u1", "tea")
	_, apiErr := svc.Create(ctx, "u1", "tea")
	if apiErr == nil || apiErr.Code != "duplicate_name" || apiErr.Status != http.StatusConflict {
		t.Fatalf("expected duplicate_name conflict, got %+v", apiErr)
	}

	presetCases := []struct {
		input PresetInput
		code  string
	}{
		{PresetInput{PresetName: "", PresetTimeMillis: 1000}, "empty_name"},
		{PresetInput{PresetName: "a", PresetTimeMillis: 0}, "invalid_preset_time"},
		{PresetInput{PresetName: "a", PresetTimeMillis: 1000, NotificationTimeMillis: -1}, "invalid_notification_time"},
		{PresetInput{PresetName: "a", PresetTimeMillis: 1000, NotificationTimeMillis: 1000}, "invalid_notification_time"},
	}
	for _, tc := range presetCases {
		if _, apiErr := svc.AddPreset(ctx, "u1", "tea", tc.input); apiErr == nil || apiErr.Code != tc.code {
			t.Fatalf("add preset %+v: expected %s, got %+v", tc.input, tc.code, apiErr)
		}
	}

	bad := "siren"
	if _, apiErr := svc.Update(ctx, "u1", "tea", UpdateTimerInput{NotificationType: &bad}); apiErr == nil || apiErr.Code != "invalid_notification_type" {
		t.Fatalf("expected invalid_notification_type, got %+v", apiErr)
	}
	if _, apiErr := svc.Get(ctx, "u1", "coffee"); apiErr == nil || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected not found, got %+v", apiErr)
	}
}

func TestTimerServiceLimits(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		mustCreate(t, svc, "u1", name)
	}
	if _, apiErr := svc.Create(ctx, "u1", "d"); apiErr == nil || apiErr.Code != "too_many_timers" {
		t.Fatalf("expected too_many_timers, got %+v", apiErr)
	}

	for i := 0; i < testLimits().MaxPresets; i++ {
		if _, apiErr := svc.AddPreset(ctx, "u1", "a", PresetInput{PresetName: "p", PresetTimeMillis: 1000}); apiErr != nil {
			t.Fatalf("add preset %d: %s", i, apiErr.Message)
		}
	}
	if _, apiErr := svc.AddPreset(ctx, "u1", "a", PresetInput{PresetName: "p", PresetTimeMillis: 1000}); apiErr == nil || apiErr.Code != "too_many_presets" {
		t.Fatalf("expected too_many_presets, got %+v", apiErr)
	}
}

func TestTimerServiceDerivedFieldsFollowPresets(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	timer := mustCreate(t, svc, "u1", "workout",
		PresetInput{PresetName: "run", PresetTimeMillis: 10000, NotificationTimeMillis: 3000},
		PresetInput{PresetName: "rest", PresetTimeMillis: 5000},
	)
	if timer.TotalMillis != 15000 || timer.ListType != model.ListTypeDetail {
		t.Fatalf("unexpected summary after adds: %+v", timer.Timer)
	}

	timer, apiErr := svc.DeletePreset(ctx, "u1", "workout", 1)
	if apiErr != nil {
		t.Fatalf("delete preset: %s", apiErr.Message)
	}
	if timer.ListType != model.ListTypeSimple || timer.TotalMillis != 5000 {
		t.Fatalf("expected simple 5000 after delete, got %+v", timer.Timer)
	}
	if len(timer.Presets) != 1 || timer.Presets[0].TimerOrder != 1 || timer.Presets[0].PresetName != "rest" {
		t.Fatalf("expected rest renumbered to 1, got %+v", timer.Presets)
	}

	timer, apiErr = svc.DeletePreset(ctx, "u1", "workout", 1)
	if apiErr != nil {
		t.Fatalf("delete last preset: %s", apiErr.Message)
	}
	if timer.TotalMillis != 0 || timer.Detail != model.NoPresetsDetail || len(timer.Presets) != 0 {
		t.Fatalf("expected empty summary, got %+v", timer)
	}

	stored, apiErr := svc.Get(ctx, "u1", "workout")
	if apiErr != nil {
		t.Fatalf("get: %s", apiErr.Message)
	}
	if stored.Detail != model.NoPresetsDetail || stored.TotalMillis != 0 {
		t.Fatalf("stored timer not updated: %+v", stored.Timer)
	}

	if _, apiErr := svc.DeletePreset(ctx, "u1", "workout", 1); apiErr == nil || apiErr.Code != "preset_not_found" {
		t.Fatalf("expected preset_not_found, got %+v", apiErr)
	}
}

func TestTimerServiceMoveRenumbers(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	mustCreate(t, svc, "u1", "circuit",
		PresetInput{PresetName: "a", PresetTimeMillis: 1000},
		PresetInput{PresetName: "b", PresetTimeMillis: 2000},
		PresetInput{PresetName: "c", PresetTimeMillis: 3000},
	)

	timer, apiErr := svc.MovePreset(ctx, "u1", "circuit", 0, 2)
	if apiErr != nil {
		t.Fatalf("move: %s", apiErr.Message)
	}
	if got := presetNames(timer.Presets); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Fatalf("unexpected order after move: %v", got)
	}
	for i, preset := range timer.Presets {
		if preset.TimerOrder != i+1 {
			t.Fatalf("expected dense order, got %+v", timer.Presets)
		}
	}
	if !strings.HasPrefix(timer.Detail, "1. b 0:02") {
		t.Fatalf("detail not rebuilt after move: %q", timer.Detail)
	}

	if _, apiErr := svc.MovePreset(ctx, "u1", "circuit", 0, 3); apiErr == nil || apiErr.Code != "invalid_order" {
		t.Fatalf("expected invalid_order, got %+v", apiErr)
	}

	timer, apiErr = svc.DeletePresets(ctx, "u1", "circuit", []int{1, 3})
	if apiErr != nil {
		t.Fatalf("delete presets: %s", apiErr.Message)
	}
	if got := presetNames(timer.Presets); !reflect.DeepEqual(got, []string{"c"}) || timer.Presets[0].TimerOrder != 1 {
		t.Fatalf("unexpected presets after batch delete: %+v", timer.Presets)
	}
}

func TestTimerServiceRenameKeepsPresets(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	mustCreate(t, svc, "u1", "tea", PresetInput{PresetName: "steep", PresetTimeMillis: 180000})
	mustCreate(t, svc, "u1", "coffee")

	taken := "coffee"
	if _, apiErr := svc.Update(ctx, "u1", "tea", UpdateTimerInput{Name: &taken}); apiErr == nil || apiErr.Code != "duplicate_name" {
		t.Fatalf("expected duplicate_name, got %+v", apiErr)
	}

	newName := "green tea"
	alarm := "alarm"
	timer, apiErr := svc.Update(ctx, "u1", "tea", UpdateTimerInput{Name: &newName, NotificationType: &alarm})
	if apiErr != nil {
		t.Fatalf("rename: %s", apiErr.Message)
	}
	if timer.Name != "green tea" || timer.NotificationType != model.NotificationAlarm {
		t.Fatalf("unexpected timer after update: %+v", timer.Timer)
	}
	if len(timer.Presets) != 1 || timer.Presets[0].TimerName != "green tea" {
		t.Fatalf("presets should follow the rename, got %+v", timer.Presets)
	}
	if _, apiErr := svc.Get(ctx, "u1", "tea"); apiErr == nil {
		t.Fatal("old name should no longer resolve")
	}
}

func TestTimerServiceDeleteMany(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	mustCreate(t, svc, "u1", "a", PresetInput{PresetName: "x", PresetTimeMillis: 1000})
	mustCreate(t, svc, "u1", "b")
	mustCreate(t, svc, "u1", "c")

	if _, apiErr := svc.DeleteMany(ctx, "u1", []string{"a", "missing"}); apiErr == nil || apiErr.Code != "timer_not_found" {
		t.Fatalf("expected timer_not_found, got %+v", apiErr)
	}
	if _, apiErr := svc.Get(ctx, "u1", "a"); apiErr != nil {
		t.Fatal("failed batch delete must not remove anything")
	}

	deleted, apiErr := svc.DeleteMany(ctx, "u1", []string{"a", "c", "a"})
	if apiErr != nil {
		t.Fatalf("delete many: %s", apiErr.Message)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	snapshot, apiErr := svc.Snapshot(ctx, "u1")
	if apiErr != nil {
		t.Fatalf("snapshot: %s", apiErr.Message)
	}
	if len(snapshot.Timers) != 1 || snapshot.Timers[0].Name != "b" || len(snapshot.Presets) != 0 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestTimerServiceWatchReceivesSnapshots(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	var received []TimerFeed
	unsubscribe, apiErr := svc.Watch(ctx, "u1", func(snapshot TimerFeed) {
		received = append(received, snapshot)
	})
	if apiErr != nil {
		t.Fatalf("watch: %s", apiErr.Message)
	}

	mustCreate(t, svc, "u1", "tea", PresetInput{PresetName: "steep", PresetTimeMillis: 1000})
	unsubscribe()
	mustCreate(t, svc, "u1", "coffee")

	if len(received) != 3 {
		t.Fatalf("expected initial + 2 snapshots, got %d", len(received))
	}
	last := received[len(received)-1]
	if len(last.Timers) != 1 || len(last.Presets) != 1 || last.Presets[0].TimerName != "tea" {
		t.Fatalf("unexpected last snapshot: %+v", last)
	}
}

func TestTimerServiceWatchDoesNotEndOnStaleSnapshot(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	svc.snapshotTaken = func() {
		svc.snapshotTaken = nil
		mustCreate(t, svc, "u1", "late")
	}

	var received []TimerFeed
	unsubscribe, apiErr := svc.Watch(ctx, "u1", func(snapshot TimerFeed) {
		received = append(received, snapshot)
	})
	if apiErr != nil {
		t.Fatalf("watch: %s", apiErr.Message)
	}
	defer unsubscribe()

	if len(received) == 0 {
		t.Fatal("expected an initial snapshot")
	}
	last := received[len(received)-1]
	if len(last.Timers) != 1 || last.Timers[0].Name != "late" {
		t.Fatalf("last snapshot misses the concurrent change: %+v", last)
	}
}

func TestTimerServiceUpdatePresetRewritesInPlace(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	before := mustCreate(t, svc, "u1", "tea",
		PresetInput{PresetName: "boil", PresetTimeMillis: 60000},
		PresetInput{PresetName: "steep", PresetTimeMillis: 180000},
	)

	after, apiErr := svc.UpdatePreset(ctx, "u1", "tea", 2, PresetInput{
		PresetName:             "brew",
		PresetTimeMillis:       120000,
		NotificationTimeMillis: 10000,
	})
	if apiErr != nil {
		t.Fatalf("update preset: %s", apiErr.Message)
	}
	if len(after.Presets) != 2 || after.TotalMillis != 180000 {
		t.Fatalf("unexpected timer after update: %+v", after)
	}
	updated := after.Presets[1]
	if updated.ID != before.Presets[1].ID || updated.TimerOrder != 2 || updated.PresetName != "brew" || updated.NotificationTimeMillis != 10000 {
		t.Fatalf("preset not rewritten in place: %+v", updated)
	}

	if _, apiErr := svc.UpdatePreset(ctx, "u1", "tea", 3, PresetInput{PresetName: "x", PresetTimeMillis: 1000}); apiErr == nil || apiErr.Code != "preset_not_found" {
		t.Fatalf("expected preset_not_found, got %+v", apiErr)
	}
}

func TestTimerServiceImport(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1")
	svc, _ := newTimerService(t, database)
	ctx := context.Background()

	created, apiErr := svc.Import(ctx, "u1", []model.TimerWithPresets{{
		Timer: model.Timer{Name: "tea", NotificationType: model.NotificationAlarm},
		Presets: []model.PresetTimer{
			{PresetName: "boil", PresetTimeMillis: 60000},
			{PresetName: "steep", PresetTimeMillis: 180000, NotificationTimeMillis: 30000},
		},
	}})
	if apiErr != nil {
		t.Fatalf("import: %s", apiErr.Message)
	}
	if len(created) != 1 || created[0].TotalMillis != 240000 || created[0].ListType != model.ListTypeDetail {
		t.Fatalf("unexpected import result: %+v", created)
	}

	timer, apiErr := svc.Get(ctx, "u1", "tea")
	if apiErr != nil {
		t.Fatalf("get: %s", apiErr.Message)
	}
	if got := presetNames(timer.Presets); !reflect.DeepEqual(got, []string{"boil", "steep"}) {
		t.Fatalf("unexpected presets: %v", got)
	}

	_, apiErr = svc.Import(ctx, "u1", []model.TimerWithPresets{
		{Timer: model.Timer{Name: "new"}},
		{Timer: model.Timer{Name: "tea"}},
	})
	if apiErr == nil || apiErr.Code != "duplicate_name" {
		t.Fatalf("expected duplicate_name, got %+v", apiErr)
	}
	if _, apiErr := svc.Get(ctx, "u1", "new"); apiErr == nil {
		t.Fatal("failed import must not leave partial timers")
	}
}
