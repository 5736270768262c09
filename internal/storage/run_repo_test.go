package storage

import (
	"context"
	"errors"
	"testing"
)

func TestRunRepo_StartFinishLatest(t *testing.T) {
	repo := NewRunRepo(newTestDB(t))
	ctx := context.Background()

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() on empty ledger error = %v, want ErrNotFound", err)
	}

	run := &IngestRun{FilesReceived: 2}
	if err := repo.Start(ctx, run); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if run.ID == "" || run.Status != RunStatusRunning {
		t.Fatalf("Start() did not initialise run: %+v", run)
	}

	run.Status = RunStatusSucceeded
	run.FilesProcessed = 2
	run.TotalPages = 3
	run.ChunksAttempted = 10
	run.ChunksIndexed = 9
	run.SkippedReasons = map[string]int{"embedding_failed": 1}
	if err := repo.Finish(ctx, run); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got.ID != run.ID || got.Status != RunStatusSucceeded {
		t.Errorf("Latest() = %+v", got)
	}
	if got.ChunksIndexed != 9 || got.TotalPages != 3 || got.FilesReceived != 2 {
		t.Errorf("Latest() counters = %+v", got)
	}
	if got.SkippedReasons["embedding_failed"] != 1 {
		t.Errorf("SkippedReasons = %v", got.SkippedReasons)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestRunRepo_FinishUnknown(t *testing.T) {
	repo := NewRunRepo(newTestDB(t))

	err := repo.Finish(context.Background(), &IngestRun{ID: "nope", Status: RunStatusFailed})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish() error = %v, want ErrNotFound", err)
	}
}
