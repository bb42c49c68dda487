package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"scriptsync/internal/fileutil"
	"scriptsync/internal/logging"
	"scriptsync/internal/runstore"
)

// artifactPath is where a cached stage artifact lives. Artifacts are shared
// across runs so a later run can reuse them.
func (p *Pipeline) artifactPath(stage, key, name string) string {
	return filepath.Join(p.cfg.Paths.WorkDir, "artifacts", stage, key[:16], name)
}

// cachedArtifact returns the artifact recorded for (stage, key) when the
// marker exists and its file is still on disk. A marker whose artifact has
// vanished is removed.
func (p *Pipeline) cachedArtifact(ctx context.Context, s *session, logger *slog.Logger, stage, key string) (string, bool) {
	if s.force {
		logger.Info("completion marker ignored",
			logging.Args(logging.DecisionAttrs("stage_cache", "miss", "force requested")...)...)
		return "", false
	}
	marker, err := p.store.FindMarker(ctx, stage, key)
	if err != nil {
		logger.Warn("completion marker lookup failed", logging.Error(err))
		return "", false
	}
	if marker == nil {
		logger.Debug("no completion marker", logging.String("input_hash", key))
		return "", false
	}
	if !fileutil.Exists(marker.ArtifactPath) {
		logger.Info("completion marker stale",
			logging.Args(append(logging.DecisionAttrs("stage_cache", "miss", "artifact missing"),
				logging.String("artifact", marker.ArtifactPath))...)...)
		if err := p.store.DeleteMarker(ctx, stage, key); err != nil {
			logger.Warn("failed to delete stale marker", logging.Error(err))
		}
		return "", false
	}
	logger.Info("stage satisfied by completion marker",
		logging.Args(append(logging.DecisionAttrs("stage_cache", "hit", "marker and artifact present"),
			logging.String("artifact", marker.ArtifactPath),
			logging.String("marker_run_id", marker.RunID))...)...)
	s.outcome.Cached = append(s.outcome.Cached, stage)
	return marker.ArtifactPath, true
}

func (p *Pipeline) markComplete(ctx context.Context, s *session, logger *slog.Logger, stage, key, artifact string) {
	err := p.store.PutMarker(ctx, runstore.Marker{
		Stage:        stage,
		InputHash:    key,
		ArtifactPath: artifact,
		RunID:        s.run.ID,
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to record completion marker", "marker_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "stage will run again next time"),
		)
	}
}
