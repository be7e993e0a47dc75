package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"multitimer/internal/model"
)

// TimerRepository stores timers and their preset timers. Write methods run
// inside a caller-owned transaction so that derived timer fields are updated
// atomically with the presets they summarize.
type TimerRepository struct {
	db *sql.DB
}

func NewTimerRepository(db *sql.DB) *TimerRepository {
	return &TimerRepository{db: db}
}

func (r *TimerRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

const timerColumns = `id, user_id, name, total_millis, list_type, notification_type, detail, created_at, updated_at`

func (r *TimerRepository) ListTimers(ctx context.Context, userID string) ([]model.Timer, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+timerColumns+`
		 FROM timers
		 WHERE user_id = ?
		 ORDER BY created_at ASC, name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	timers := make([]model.Timer, 0)
	for rows.Next() {
		timer, scanErr := scanTimer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		timers = append(timers, *timer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timers: %w", err)
	}
	return timers, nil
}

func (r *TimerRepository) GetTimer(ctx context.Context, userID, name string) (*model.Timer, error) {
	return getTimer(ctx, r.db, userID, name)
}

func (r *TimerRepository) GetTimerTx(ctx context.Context, tx *sql.Tx, userID, name string) (*model.Timer, error) {
	return getTimer(ctx, tx, userID, name)
}

func getTimer(ctx context.Context, q querier, userID, name string) (*model.Timer, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT `+timerColumns+` FROM timers WHERE user_id = ? AND name = ?`,
		userID,
		name,
	)
	return scanTimer(row)
}

// GetTimerWithPresets joins a timer with its presets ordered by timer_order.
func (r *TimerRepository) GetTimerWithPresets(ctx context.Context, userID, name string) (*model.TimerWithPresets, error) {
	timer, err := getTimer(ctx, r.db, userID, name)
	if err != nil {
		return nil, err
	}
	presets, err := listPresets(ctx, r.db, timer.ID)
	if err != nil {
		return nil, err
	}
	return &model.TimerWithPresets{Timer: *timer, Presets: presets}, nil
}

func (r *TimerRepository) CountTimersTx(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM timers WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count timers: %w", err)
	}
	return count, nil
}

func (r *TimerRepository) InsertTimerTx(ctx context.Context, tx *sql.Tx, timer *model.Timer) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO timers (`+timerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		timer.ID,
		timer.UserID,
		timer.Name,
		timer.TotalMillis,
		string(timer.ListType),
		string(timer.NotificationType),
		timer.Detail,
		formatTime(timer.CreatedAt),
		formatTime(timer.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert timer: %w", err)
	}
	return nil
}

func (r *TimerRepository) UpdateTimerTx(ctx context.Context, tx *sql.Tx, timer *model.Timer) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE timers
		 SET name = ?,
		     total_millis = ?,
		     list_type = ?,
		     notification_type = ?,
		     detail = ?,
		     updated_at = ?
		 WHERE id = ?`,
		timer.Name,
		timer.TotalMillis,
		string(timer.ListType),
		string(timer.NotificationType),
		timer.Detail,
		formatTime(timer.UpdatedAt),
		timer.ID,
	)
	if err != nil {
		return fmt.Errorf("update timer: %w", err)
	}
	return expectAffected(result, "update timer")
}

// DeleteTimerTx removes a timer; its presets go with it via ON DELETE CASCADE.
func (r *TimerRepository) DeleteTimerTx(ctx context.Context, tx *sql.Tx, timerID string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM timers WHERE id = ?`, timerID)
	if err != nil {
		return fmt.Errorf("delete timer: %w", err)
	}
	return expectAffected(result, "delete timer")
}

const presetColumns = `p.id, p.timer_id, t.name, p.preset_name, p.timer_order,
	p.preset_time_millis, p.notification_time_millis, p.created_at, p.updated_at`

func (r *TimerRepository) ListPresets(ctx context.Context, timerID string) ([]model.PresetTimer, error) {
	return listPresets(ctx, r.db, timerID)
}

func (r *TimerRepository) ListPresetsTx(ctx context.Context, tx *sql.Tx, timerID string) ([]model.PresetTimer, error) {
	return listPresets(ctx, tx, timerID)
}

func listPresets(ctx context.Context, q querier, timerID string) ([]model.PresetTimer, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT `+presetColumns+`
		 FROM preset_timers p
		 JOIN timers t ON t.id = p.timer_id
		 WHERE p.timer_id = ?
		 ORDER BY p.timer_order ASC`,
		timerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return collectPresets(rows)
}

// ListPresetsByUser returns every preset of every timer owned by userID,
// grouped by timer and ordered by timer_order.
func (r *TimerRepository) ListPresetsByUser(ctx context.Context, userID string) ([]model.PresetTimer, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+presetColumns+`
		 FROM preset_timers p
		 JOIN timers t ON t.id = p.timer_id
		 WHERE t.user_id = ?
		 ORDER BY t.created_at ASC, t.name ASC, p.timer_order ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user presets: %w", err)
	}
	return collectPresets(rows)
}

func collectPresets(rows *sql.Rows) ([]model.PresetTimer, error) {
	defer rows.Close()

	presets := make([]model.PresetTimer, 0)
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, *preset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presets: %w", err)
	}
	return presets, nil
}

func (r *TimerRepository) InsertPresetTx(ctx context.Context, tx *sql.Tx, preset *model.PresetTimer) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO preset_timers (
			id, timer_id, preset_name, timer_order, preset_time_millis,
			notification_time_millis, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		preset.ID,
		preset.TimerID,
		preset.PresetName,
		preset.TimerOrder,
		preset.PresetTimeMillis,
		preset.NotificationTimeMillis,
		formatTime(preset.CreatedAt),
		formatTime(preset.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert preset: %w", err)
	}
	return nil
}

// InsertPresetsTx inserts presets in slice order.
func (r *TimerRepository) InsertPresetsTx(ctx context.Context, tx *sql.Tx, presets []model.PresetTimer) error {
	for i := range presets {
		if err := r.InsertPresetTx(ctx, tx, &presets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *TimerRepository) DeletePresetsByTimerTx(ctx context.Context, tx *sql.Tx, timerID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM preset_timers WHERE timer_id = ?`, timerID); err != nil {
		return fmt.Errorf("delete presets: %w", err)
	}
	return nil
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTimer(s scanner) (*model.Timer, error) {
	timer := model.Timer{}
	var listType string
	var notificationType string
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&timer.ID,
		&timer.UserID,
		&timer.Name,
		&timer.TotalMillis,
		&listType,
		&notificationType,
		&timer.Detail,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan timer: %w", err)
	}
	timer.ListType = model.ListType(listType)
	timer.NotificationType = model.NotificationType(notificationType)

	if timer.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse timer created_at: %w", err)
	}
	if timer.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse timer updated_at: %w", err)
	}
	return &timer, nil
}

func scanPreset(s scanner) (*model.PresetTimer, error) {
	preset := model.PresetTimer{}
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&preset.ID,
		&preset.TimerID,
		&preset.TimerName,
		&preset.PresetName,
		&preset.TimerOrder,
		&preset.PresetTimeMillis,
		&preset.NotificationTimeMillis,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan preset: %w", err)
	}

	if preset.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse preset created_at: %w", err)
	}
	if preset.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse preset updated_at: %w", err)
	}
	return &preset, nil
}
