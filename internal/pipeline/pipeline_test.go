package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fvitu/offliner/internal/engine"
	"github.com/fvitu/offliner/internal/models"
	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
	"github.com/fvitu/offliner/internal/resolver"
)

type fakeMediaTool struct {
	failURLs map[string]bool
}

func (f *fakeMediaTool) Probe(_ context.Context, _ string, _ engine.Options) (engine.ProbeResult, error) {
	return engine.ProbeResult{HasPlayableFormats: true}, nil
}

func (f *fakeMediaTool) Download(_ context.Context, url string, opts engine.Options, onProgress func(engine.ProgressEvent) error, onPostProcess func(engine.PostProcessEvent)) (engine.DownloadOutcome, error) {
	if f.failURLs[url] {
		return engine.DownloadOutcome{}, errDownload
	}
	if onProgress != nil {
		_ = onProgress(engine.ProgressEvent{DownloadedBytes: 100, TotalBytes: 100, Filename: "x"})
	}
	dir := filepath.Dir(opts.OutputTemplate)
	path := filepath.Join(dir, filepath.Base(url)+"."+containerFor(opts))
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		return engine.DownloadOutcome{}, err
	}
	return engine.DownloadOutcome{ReportedFilePath: path}, nil
}

func containerFor(opts engine.Options) string {
	if opts.Mode == engine.ModeAudio {
		return string(opts.AudioFormat)
	}
	return string(opts.VideoContainer)
}

var errDownload = errDownloadType{}

type errDownloadType struct{}

func (errDownloadType) Error() string { return "simulated download failure" }

func newTestPipeline(t *testing.T, tool *fakeMediaTool) (*Pipeline, progress.Store) {
	t.Helper()
	st := progress.NewMemoryStore()
	res := resolver.New(nil, nil)
	eng := engine.NewEngine(tool)
	tempDir := t.TempDir()
	outputDir := filepath.Join(tempDir, "Output")
	p := New(st, res, eng, nil, nil, tempDir, outputDir)
	return p, st
}

func testJob(requestID string, targets []models.Target, cfg models.UserConfig) queue.Job {
	return queue.Job{
		RequestID:    requestID,
		PlaylistMode: true,
		Targets:      targets,
		Config:       cfg,
	}
}

func TestExecuteSingleTargetProducesDirectFile(t *testing.T) {
	tool := &fakeMediaTool{}
	p, st := newTestPipeline(t, tool)
	ctx := context.Background()

	if err := st.Create(ctx, "req1", 0); err != nil {
		t.Fatal(err)
	}

	cfg := models.DefaultUserConfig()
	job := testJob("req1", []models.Target{{URL: "https://x/one", Title: "One", SourceRef: "one"}}, cfg)

	if err := p.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	rec, _ := st.Get(ctx, "req1")
	if !rec.Complete || rec.Phase != progress.PhaseDone {
		t.Fatalf("expected done, got %+v", rec)
	}
	if rec.FilePath == "" {
		t.Error("expected non-empty FilePath")
	}
	if filepath.Ext(rec.FilePath) == ".zip" {
		t.Error("single target should not produce a zip")
	}
}

func TestExecuteMultipleTargetsProducesZip(t *testing.T) {
	tool := &fakeMediaTool{}
	p, st := newTestPipeline(t, tool)
	ctx := context.Background()
	_ = st.Create(ctx, "req2", 0)

	cfg := models.DefaultUserConfig()
	job := testJob("req2", []models.Target{
		{URL: "https://x/one", Title: "One", SourceRef: "one"},
		{URL: "https://x/two", Title: "Two", SourceRef: "two"},
	}, cfg)

	if err := p.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	rec, _ := st.Get(ctx, "req2")
	if !rec.Complete || rec.Phase != progress.PhaseDone {
		t.Fatalf("expected done, got %+v", rec)
	}
	if filepath.Ext(rec.FilePath) != ".zip" {
		t.Errorf("expected zip artifact, got %q", rec.FilePath)
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		t.Errorf("expected staged zip to exist: %v", err)
	}
}

func TestExecuteNoResultsPublishesError(t *testing.T) {
	tool := &fakeMediaTool{}
	p, st := newTestPipeline(t, tool)
	ctx := context.Background()
	_ = st.Create(ctx, "req3", 0)

	cfg := models.DefaultUserConfig()
	job := queue.Job{RequestID: "req3", PlaylistMode: true, Targets: nil, Config: cfg}

	if err := p.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	rec, _ := st.Get(ctx, "req3")
	if rec.Phase != progress.PhaseError || rec.Error == "" {
		t.Fatalf("expected error phase, got %+v", rec)
	}
}

func TestExecuteAllItemsFailedPublishesError(t *testing.T) {
	tool := &fakeMediaTool{failURLs: map[string]bool{"https://x/one": true}}
	p, st := newTestPipeline(t, tool)
	ctx := context.Background()
	_ = st.Create(ctx, "req4", 0)

	cfg := models.DefaultUserConfig()
	job := testJob("req4", []models.Target{{URL: "https://x/one", Title: "One", SourceRef: "one"}}, cfg)

	if err := p.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	rec, _ := st.Get(ctx, "req4")
	if rec.Phase != progress.PhaseError {
		t.Fatalf("expected error phase, got %+v", rec)
	}
}

func TestExecuteCancelledBeforeStartPublishesCancelled(t *testing.T) {
	tool := &fakeMediaTool{}
	p, st := newTestPipeline(t, tool)
	ctx := context.Background()
	_ = st.Create(ctx, "req5", 0)
	_ = st.RequestCancel(ctx, "req5")

	cfg := models.DefaultUserConfig()
	job := testJob("req5", []models.Target{{URL: "https://x/one", Title: "One", SourceRef: "one"}}, cfg)

	if err := p.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	rec, _ := st.Get(ctx, "req5")
	if rec.Phase != progress.PhaseCancelled {
		t.Fatalf("expected cancelled phase, got %+v", rec)
	}
}

func TestExecuteExternalSessionDirNotOwnedNotRemoved(t *testing.T) {
	tool := &fakeMediaTool{}
	p, st := newTestPipeline(t, tool)
	ctx := context.Background()
	_ = st.Create(ctx, "req6", 0)

	sessionDir := t.TempDir()
	cfg := models.DefaultUserConfig()
	job := queue.Job{
		RequestID:    "req6",
		PlaylistMode: true,
		Targets:      []models.Target{{URL: "https://x/one", Title: "One", SourceRef: "one"}},
		Config:       cfg,
		SessionDir:   sessionDir,
	}

	if err := p.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(sessionDir); err != nil {
		t.Errorf("caller-supplied session dir should survive: %v", err)
	}

	rec, _ := st.Get(ctx, "req6")
	if rec.FilePath == "" {
		t.Fatal("expected artifact path")
	}
	if filepath.Dir(rec.FilePath) != sessionDir {
		t.Errorf("unstaged artifact should remain in the supplied session dir, got %q", rec.FilePath)
	}
}
