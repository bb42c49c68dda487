package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const runColumns = "id, video_path, script_path, output_path, work_dir, status, stage, model, fell_back, event_count, dropped_count, error_message, review_reason, created_at, updated_at"

// CreateRun inserts a new run in the running state. The caller supplies the id.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	now := time.Now().UTC()
	run.Status = StatusRunning
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := s.exec(ctx,
		`INSERT INTO runs (
            id, video_path, script_path, output_path, work_dir, status, stage,
            model, fell_back, event_count, dropped_count, error_message, review_reason,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullableString(run.VideoPath),
		nullableString(run.ScriptPath),
		nullableString(run.OutputPath),
		nullableString(run.WorkDir),
		run.Status,
		nullableString(run.Stage),
		nullableString(run.Model),
		boolToInt(run.FellBack),
		run.EventCount,
		run.DroppedCount,
		nullableString(run.ErrorMessage),
		nullableString(run.ReviewReason),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun persists every mutable run field and bumps updated_at.
func (s *Store) UpdateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	res, err := s.exec(ctx,
		`UPDATE runs SET
            output_path = ?, work_dir = ?, status = ?, stage = ?, model = ?,
            fell_back = ?, event_count = ?, dropped_count = ?, error_message = ?,
            review_reason = ?, updated_at = ?
        WHERE id = ?`,
		nullableString(run.OutputPath),
		nullableString(run.WorkDir),
		run.Status,
		nullableString(run.Stage),
		nullableString(run.Model),
		boolToInt(run.FellBack),
		run.EventCount,
		run.DroppedCount,
		nullableString(run.ErrorMessage),
		nullableString(run.ReviewReason),
		formatTime(run.UpdatedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// SetStage records the stage a running run has entered.
func (s *Store) SetStage(ctx context.Context, id, stage string) error {
	_, err := s.exec(ctx,
		`UPDATE runs SET stage = ?, updated_at = ? WHERE id = ?`,
		nullableString(stage), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set stage: %w", err)
	}
	return nil
}

// GetRun fetches a run by id. ErrRunNotFound is returned for unknown ids.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first, optionally filtered by status.
// A non-positive limit returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int, statuses ...Status) ([]*Run, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + runColumns + " FROM runs"
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FailStaleRuns marks runs left in the running state by a crashed process.
func (s *Store) FailStaleRuns(ctx context.Context, reason string) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, updated_at = ? WHERE status = ?`,
		StatusFailed, reason, formatTime(time.Now()), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		videoPath    sql.NullString
		scriptPath   sql.NullString
		outputPath   sql.NullString
		workDir      sql.NullString
		statusStr    string
		stage        sql.NullString
		model        sql.NullString
		fellBack     int
		errorMessage sql.NullString
		reviewReason sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&videoPath,
		&scriptPath,
		&outputPath,
		&workDir,
		&statusStr,
		&stage,
		&model,
		&fellBack,
		&run.EventCount,
		&run.DroppedCount,
		&errorMessage,
		&reviewReason,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	run.VideoPath = videoPath.String
	run.ScriptPath = scriptPath.String
	run.OutputPath = outputPath.String
	run.WorkDir = workDir.String
	run.Status = Status(statusStr)
	run.Stage = stage.String
	run.Model = model.String
	run.FellBack = fellBack != 0
	run.ErrorMessage = errorMessage.String
	run.ReviewReason = reviewReason.String
	run.CreatedAt = parseTime(createdRaw)
	run.UpdatedAt = parseTime(updatedRaw)
	return &run, nil
}
