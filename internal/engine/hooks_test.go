package engine

import (
	"context"
	"testing"

	"github.com/fvitu/offliner/internal/progress"
)

func TestNewTransferHookComputesOverallPercent(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, "req1", 4); err != nil {
		t.Fatalf("Create: %v", err)
	}

	hook := NewTransferHook(ctx, store, HookContext{
		RequestID:      "req1",
		CompletedItems: func() int { return 1 },
		TotalItems:     4,
	})

	if err := hook(ProgressEvent{DownloadedBytes: 50, TotalBytes: 100, Speed: "1MiB/s", ETA: "00:10", Filename: "clip"}); err != nil {
		t.Fatalf("hook returned error: %v", err)
	}

	rec, err := store.Get(ctx, "req1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// completed=1, local=0.5, total=4 -> 15 + (1.5/4)*75 = 15 + 28.125 = 43
	if rec.Percent != 43 {
		t.Errorf("Percent = %d, want 43", rec.Percent)
	}
	if rec.Status != "Downloading..." {
		t.Errorf("Status = %q", rec.Status)
	}
	if rec.Phase != progress.PhaseDownloading {
		t.Errorf("Phase = %q", rec.Phase)
	}
	if rec.Speed != "1MiB/s" || rec.ETA != "00:10" {
		t.Errorf("speed/eta not recorded: %+v", rec)
	}
	if rec.CurrentFile != "clip" {
		t.Errorf("CurrentFile = %q, want %q", rec.CurrentFile, "clip")
	}
}

func TestNewTransferHookCurrentFileStripsExtension(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, "req1", 1)

	hook := NewTransferHook(ctx, store, HookContext{RequestID: "req1", CompletedItems: func() int { return 0 }, TotalItems: 1})
	if err := hook(ProgressEvent{Filename: "/tmp/session/Some Title - Uploader.webm"}); err != nil {
		t.Fatalf("hook error: %v", err)
	}

	rec, _ := store.Get(ctx, "req1")
	if rec.CurrentFile != "Some Title - Uploader" {
		t.Errorf("CurrentFile = %q, want stem without directory or extension", rec.CurrentFile)
	}
	if rec.Detail != "Some Title - Uploader" {
		t.Errorf("Detail = %q, want stem without directory or extension", rec.Detail)
	}
}

func TestNewTransferHookCapsAtNinety(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, "req1", 1)

	hook := NewTransferHook(ctx, store, HookContext{
		RequestID:      "req1",
		CompletedItems: func() int { return 1 },
		TotalItems:     1,
	})

	if err := hook(ProgressEvent{DownloadedBytes: 100, TotalBytes: 100}); err != nil {
		t.Fatalf("hook returned error: %v", err)
	}
	rec, _ := store.Get(ctx, "req1")
	if rec.Percent != 90 {
		t.Errorf("Percent = %d, want 90 (capped)", rec.Percent)
	}
}

func TestNewTransferHookTruncatesDetail(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, "req1", 1)

	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}

	hook := NewTransferHook(ctx, store, HookContext{RequestID: "req1", CompletedItems: func() int { return 0 }, TotalItems: 1})
	if err := hook(ProgressEvent{Filename: long}); err != nil {
		t.Fatalf("hook error: %v", err)
	}
	rec, _ := store.Get(ctx, "req1")
	if len([]rune(rec.Detail)) != maxDetailLen {
		t.Errorf("Detail len = %d, want %d", len([]rune(rec.Detail)), maxDetailLen)
	}
}

func TestNewTransferHookReturnsAbortedWhenCancelled(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, "req1", 1)
	_ = store.RequestCancel(ctx, "req1")

	hook := NewTransferHook(ctx, store, HookContext{RequestID: "req1", CompletedItems: func() int { return 0 }, TotalItems: 1})
	err := hook(ProgressEvent{})
	if err != ErrAborted {
		t.Errorf("err = %v, want ErrAborted", err)
	}
}

func TestNewPostProcessHookIgnoresNonStartedEvents(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, "req1", 1)
	_ = store.Update(ctx, "req1", func(r *progress.Record) { r.Speed = "5MiB/s" })

	hook := NewPostProcessHook(ctx, store, "req1")
	hook(PostProcessEvent{Name: PPAudioExtract, Started: false})

	rec, _ := store.Get(ctx, "req1")
	if rec.Speed != "5MiB/s" {
		t.Errorf("expected untouched record, got %+v", rec)
	}
}

func TestNewPostProcessHookSetsHumanizedStatus(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, "req1", 1)
	_ = store.Update(ctx, "req1", func(r *progress.Record) { r.Speed = "5MiB/s"; r.ETA = "00:03" })

	hook := NewPostProcessHook(ctx, store, "req1")
	hook(PostProcessEvent{Name: PPAudioExtract, Started: true})

	rec, _ := store.Get(ctx, "req1")
	if rec.Status != "Processing..." {
		t.Errorf("Status = %q", rec.Status)
	}
	if rec.Detail != "Extracting audio" {
		t.Errorf("Detail = %q", rec.Detail)
	}
	if rec.Phase != progress.PhaseConverting {
		t.Errorf("Phase = %q", rec.Phase)
	}
	if rec.Speed != "" || rec.ETA != "" {
		t.Errorf("expected speed/eta cleared, got speed=%q eta=%q", rec.Speed, rec.ETA)
	}
}

func TestNewPostProcessHookFallsBackToRawName(t *testing.T) {
	store := progress.NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, "req1", 1)

	hook := NewPostProcessHook(ctx, store, "req1")
	hook(PostProcessEvent{Name: PostProcessor("unlisted_stage"), Started: true})

	rec, _ := store.Get(ctx, "req1")
	if rec.Detail != "unlisted_stage" {
		t.Errorf("Detail = %q, want raw fallback", rec.Detail)
	}
}
