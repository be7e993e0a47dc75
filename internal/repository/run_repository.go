package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"multitimer/internal/model"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) InsertRun(ctx context.Context, run *model.TimerRun) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO timer_runs (
			id, user_id, timer_id, timer_name, status, planned_millis, elapsed_millis,
			started_at, ended_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.UserID,
		run.TimerID,
		run.TimerName,
		run.Status,
		run.PlannedMillis,
		run.ElapsedMillis,
		formatTime(run.StartedAt),
		nullableTime(run),
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) UpdateRun(ctx context.Context, run *model.TimerRun) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE timer_runs
		 SET status = ?,
		     elapsed_millis = ?,
		     ended_at = ?,
		     updated_at = ?
		 WHERE id = ?`,
		run.Status,
		run.ElapsedMillis,
		nullableTime(run),
		formatTime(run.UpdatedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return expectAffected(result, "update run")
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (*model.TimerRun, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, timer_id, timer_name, status, planned_millis, elapsed_millis,
		        started_at, ended_at, created_at, updated_at
		 FROM timer_runs
		 WHERE id = ?`,
		id,
	)
	return scanRun(row)
}

func (r *RunRepository) ListRuns(ctx context.Context, userID string, limit int) ([]model.TimerRun, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, timer_id, timer_name, status, planned_millis, elapsed_millis,
		        started_at, ended_at, created_at, updated_at
		 FROM timer_runs
		 WHERE user_id = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.TimerRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

func nullableTime(run *model.TimerRun) interface{} {
	if run.EndedAt == nil {
		return nil
	}
	return formatTime(*run.EndedAt)
}

func scanRun(s scanner) (*model.TimerRun, error) {
	run := model.TimerRun{}
	var startedAt string
	var endedAt sql.NullString
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&run.ID,
		&run.UserID,
		&run.TimerID,
		&run.TimerName,
		&run.Status,
		&run.PlannedMillis,
		&run.ElapsedMillis,
		&startedAt,
		&endedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse run started_at: %w", err)
	}
	if endedAt.Valid {
		parsedEndedAt, parseErr := parseTime(endedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse run ended_at: %w", parseErr)
		}
		run.EndedAt = &parsedEndedAt
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse run created_at: %w", err)
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse run updated_at: %w", err)
	}
	return &run, nil
}
