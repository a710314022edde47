package tui

import (
	"context"
	"testing"
	"time"

	"github.com/fvitu/offliner/internal/models"
	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
)

func TestPollAggregatesQueueAndProgress(t *testing.T) {
	ctx := context.Background()
	backend := queue.NewMemoryBackend()
	store := progress.NewMemoryStore()

	job := queue.Job{RequestID: "req-1", RawInput: "some track", EnqueuedAt: time.Now()}
	if err := backend.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok, err := backend.Dequeue(ctx, 0); !ok || err != nil {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if err := store.Create(ctx, "req-1", 1); err != nil {
		t.Fatalf("create progress record: %v", err)
	}
	if err := store.Update(ctx, "req-1", func(r *progress.Record) {
		r.Phase = progress.PhaseDownloading
		r.Percent = 40
	}); err != nil {
		t.Fatalf("update progress record: %v", err)
	}

	second := queue.Job{RequestID: "req-2", RawInput: "another track", EnqueuedAt: time.Now()}
	if err := backend.Enqueue(ctx, second); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	snap := poll(ctx, backend, store)

	if snap.Err != nil {
		t.Fatalf("unexpected error: %v", snap.Err)
	}
	if snap.QueueLength != 1 {
		t.Fatalf("queue length = %d, want 1", snap.QueueLength)
	}
	if !snap.Health.Healthy {
		t.Fatalf("expected healthy memory backend")
	}
	if len(snap.Jobs) != 1 {
		t.Fatalf("in-flight jobs = %d, want 1", len(snap.Jobs))
	}
	if snap.Jobs[0].Job.RequestID != "req-1" {
		t.Fatalf("in-flight job id = %q, want req-1", snap.Jobs[0].Job.RequestID)
	}
	if snap.Jobs[0].Record.Percent != 40 {
		t.Fatalf("progress percent = %d, want 40", snap.Jobs[0].Record.Percent)
	}
}

func TestPollMissingRecordYieldsNotFound(t *testing.T) {
	ctx := context.Background()
	backend := queue.NewMemoryBackend()
	store := progress.NewMemoryStore()

	job := queue.Job{RequestID: "req-1", Config: models.DefaultUserConfig(), EnqueuedAt: time.Now()}
	if err := backend.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok, err := backend.Dequeue(ctx, 0); !ok || err != nil {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}

	snap := poll(ctx, backend, store)

	if len(snap.Jobs) != 1 {
		t.Fatalf("in-flight jobs = %d, want 1", len(snap.Jobs))
	}
	if snap.Jobs[0].Record.Phase != progress.PhaseError {
		t.Fatalf("phase = %q, want error (not found)", snap.Jobs[0].Record.Phase)
	}
}
