package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"scriptsync/internal/config"
	"scriptsync/internal/runstore"
)

// MustOpenStore opens a runstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a running ledger entry for tests using the provided store.
func NewRun(t testing.TB, store *runstore.Store, video, script string) *runstore.Run {
	t.Helper()

	run := &runstore.Run{ID: uuid.NewString(), VideoPath: video, ScriptPath: script}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}
