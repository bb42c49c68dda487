package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PutMarker records (or replaces) the completion marker for a stage and input digest.
func (s *Store) PutMarker(ctx context.Context, marker Marker) error {
	if strings.TrimSpace(marker.Stage) == "" || strings.TrimSpace(marker.InputHash) == "" {
		return errors.New("marker stage and input hash are required")
	}
	if marker.CompletedAt.IsZero() {
		marker.CompletedAt = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO stage_markers (stage, input_hash, artifact_path, run_id, completed_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(stage, input_hash) DO UPDATE SET
            artifact_path = excluded.artifact_path,
            run_id = excluded.run_id,
            completed_at = excluded.completed_at`,
		marker.Stage,
		marker.InputHash,
		marker.ArtifactPath,
		nullableString(marker.RunID),
		formatTime(marker.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("put marker: %w", err)
	}
	return nil
}

// FindMarker returns the marker for a stage and input digest, or nil if none exists.
func (s *Store) FindMarker(ctx context.Context, stage, inputHash string) (*Marker, error) {
	ctx = ensureContext(ctx)
	var (
		marker    Marker
		runID     sql.NullString
		completed sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT stage, input_hash, artifact_path, run_id, completed_at
        FROM stage_markers WHERE stage = ? AND input_hash = ?`,
		stage, inputHash,
	).Scan(&marker.Stage, &marker.InputHash, &marker.ArtifactPath, &runID, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find marker: %w", err)
	}
	marker.RunID = runID.String
	marker.CompletedAt = parseTime(completed)
	return &marker, nil
}

// DeleteMarker removes a stale marker, typically after its artifact vanished.
func (s *Store) DeleteMarker(ctx context.Context, stage, inputHash string) error {
	if _, err := s.exec(ctx,
		`DELETE FROM stage_markers WHERE stage = ? AND input_hash = ?`,
		stage, inputHash,
	); err != nil {
		return fmt.Errorf("delete marker: %w", err)
	}
	return nil
}
