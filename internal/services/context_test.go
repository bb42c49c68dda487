package services_test

import (
	"context"
	"testing"

	"scriptsync/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithStage(ctx, "reconcile")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "reconcile" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}
