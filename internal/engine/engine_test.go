package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fvitu/offliner/internal/models"
)

type fakeTool struct {
	probeResults   []ProbeResult
	probeErrs      []error
	probeCall      int
	downloadResult DownloadOutcome
	downloadErrs   []error
	downloadCall   int
}

func (f *fakeTool) Probe(_ context.Context, _ string, _ Options) (ProbeResult, error) {
	idx := f.probeCall
	f.probeCall++
	if idx < len(f.probeResults) {
		var err error
		if idx < len(f.probeErrs) {
			err = f.probeErrs[idx]
		}
		return f.probeResults[idx], err
	}
	return f.probeResults[len(f.probeResults)-1], nil
}

func (f *fakeTool) Download(_ context.Context, _ string, _ Options, onProgress func(ProgressEvent) error, onPostProcess func(PostProcessEvent)) (DownloadOutcome, error) {
	idx := f.downloadCall
	f.downloadCall++
	if idx < len(f.downloadErrs) && f.downloadErrs[idx] != nil {
		return DownloadOutcome{}, f.downloadErrs[idx]
	}
	return f.downloadResult, nil
}

func testTarget() models.Target {
	return models.Target{
		URL:      "https://example.com/watch?v=abc",
		Title:    "My Title",
		Uploader: "Uploader",
		Platform: models.PlatformGeneral,
	}
}

func testConfig() models.UserConfig {
	cfg := models.DefaultUserConfig()
	return cfg
}

func TestEngineDownloadHappyPath(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{
		probeResults:   []ProbeResult{{HasPlayableFormats: true}},
		downloadResult: DownloadOutcome{ReportedFilePath: filepath.Join(dir, "My Title - Uploader.mp3")},
	}
	e := NewEngine(tool)

	result, err := e.Download(context.Background(), testTarget(), ModeAudio, testConfig(), dir, "", nil, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.FilePath == "" {
		t.Error("expected non-empty FilePath")
	}
}

func TestEnginePreflightFailsWithoutCredentials(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{probeResults: []ProbeResult{{HasPlayableFormats: false}}}
	e := NewEngine(tool)

	_, err := e.Download(context.Background(), testTarget(), ModeAudio, testConfig(), dir, "", nil, nil)
	if !errors.Is(err, errNoPlayableFormats) {
		t.Fatalf("err = %v, want errNoPlayableFormats", err)
	}
	if tool.probeCall != 1 {
		t.Errorf("expected exactly one probe call without credentials, got %d", tool.probeCall)
	}
}

func TestEnginePreflightRetriesOnceWithCredentials(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{
		probeResults: []ProbeResult{
			{HasPlayableFormats: false},
			{HasPlayableFormats: true},
		},
		downloadResult: DownloadOutcome{ReportedFilePath: filepath.Join(dir, "out.mp3")},
	}
	e := NewEngine(tool)

	_, err := e.Download(context.Background(), testTarget(), ModeAudio, testConfig(), dir, filepath.Join(dir, "cookies.txt"), nil, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if tool.probeCall != 2 {
		t.Errorf("expected two probe calls, got %d", tool.probeCall)
	}
}

func TestEnginePreflightFailsAfterCredentialedRetry(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{
		probeResults: []ProbeResult{
			{HasPlayableFormats: false},
			{HasPlayableFormats: false},
		},
	}
	e := NewEngine(tool)

	_, err := e.Download(context.Background(), testTarget(), ModeAudio, testConfig(), dir, filepath.Join(dir, "cookies.txt"), nil, nil)
	if !errors.Is(err, errNoPlayableFormats) {
		t.Fatalf("err = %v, want errNoPlayableFormats", err)
	}
}

func TestEngineSponsorBlockFallbackRetriesOnce(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{
		probeResults: []ProbeResult{{HasPlayableFormats: true}},
		downloadErrs: []error{errors.New("postprocessor error: SponsorBlock failed")},
		downloadResult: DownloadOutcome{ReportedFilePath: filepath.Join(dir, "out.mp3")},
	}
	e := NewEngine(tool)

	cfg := testConfig()
	cfg.SponsorSkipEnabled = true
	result, err := e.Download(context.Background(), testTarget(), ModeAudio, cfg, dir, "", nil, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.Skipped == "" {
		t.Error("expected a skip note after SponsorBlock fallback")
	}
	if tool.downloadCall != 2 {
		t.Errorf("expected two download calls, got %d", tool.downloadCall)
	}
}

func TestEngineSponsorBlockFallbackOnlyWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{
		probeResults: []ProbeResult{{HasPlayableFormats: true}},
		downloadErrs: []error{errors.New("postprocessor error: SponsorBlock failed")},
	}
	e := NewEngine(tool)

	cfg := testConfig()
	cfg.SponsorSkipEnabled = false
	_, err := e.Download(context.Background(), testTarget(), ModeAudio, cfg, dir, "", nil, nil)
	if err == nil {
		t.Fatal("expected error when sponsor skip is already disabled")
	}
	if tool.downloadCall != 1 {
		t.Errorf("expected exactly one download call, got %d", tool.downloadCall)
	}
}

func TestEngineCredentialedClientFallback(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{
		probeResults:   []ProbeResult{{HasPlayableFormats: true}},
		downloadErrs:   []error{errors.New("400 error: client surface rejected")},
		downloadResult: DownloadOutcome{ReportedFilePath: filepath.Join(dir, "out.mp3")},
	}
	e := NewEngine(tool)

	result, err := e.Download(context.Background(), testTarget(), ModeAudio, testConfig(), dir, "", nil, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.FilePath == "" {
		t.Error("expected resolved path after client fallback")
	}
	if tool.downloadCall != 2 {
		t.Errorf("expected two download calls, got %d", tool.downloadCall)
	}
}

func TestEngineAbortedPropagatesWithoutFallback(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{
		probeResults: []ProbeResult{{HasPlayableFormats: true}},
		downloadErrs: []error{ErrAborted},
	}
	e := NewEngine(tool)

	_, err := e.Download(context.Background(), testTarget(), ModeAudio, testConfig(), dir, "", nil, nil)
	if err != ErrAborted {
		t.Errorf("err = %v, want ErrAborted", err)
	}
	if tool.downloadCall != 1 {
		t.Errorf("expected no fallback retry on abort, got %d calls", tool.downloadCall)
	}
}

func TestResolveFinalPathScansSessionDirWhenToolReportsNothing(t *testing.T) {
	dir := t.TempDir()
	stem := "My Title - Uploader"

	smallPath := filepath.Join(dir, stem+".jpg")
	bigPath := filepath.Join(dir, stem+".mp3")
	if err := os.WriteFile(smallPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bigPath, []byte("xxxxxxxxxx"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := Options{Mode: ModeAudio, AudioFormat: models.AudioMP3}
	got := resolveFinalPath(DownloadOutcome{}, dir, stem, opts)
	if got != bigPath {
		t.Errorf("resolveFinalPath = %q, want %q", got, bigPath)
	}
}

func TestResolveFinalPathReconstructsWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	stem := "My Title - Uploader"
	opts := Options{Mode: ModeAudio, AudioFormat: models.AudioMP3}

	got := resolveFinalPath(DownloadOutcome{}, dir, stem, opts)
	want := filepath.Join(dir, stem+".mp3")
	if got != want {
		t.Errorf("resolveFinalPath = %q, want %q", got, want)
	}
}

func TestResolveFinalPathPrefersConvertedPath(t *testing.T) {
	opts := Options{Mode: ModeAudio, AudioFormat: models.AudioMP3}
	got := resolveFinalPath(DownloadOutcome{ReportedFilePath: "/tmp/a.webm", ConvertedPath: "/tmp/a.mp3"}, "/tmp", "a", opts)
	if got != "/tmp/a.mp3" {
		t.Errorf("resolveFinalPath = %q, want /tmp/a.mp3", got)
	}
}

func TestCleanupSidecarsRemovesSiblingsButKeepsFinal(t *testing.T) {
	dir := t.TempDir()
	stem := "Title - Uploader"
	final := filepath.Join(dir, stem+".mp3")
	sidecar := filepath.Join(dir, stem+".jpg")
	subtitle := filepath.Join(dir, stem+".en.srt")

	for _, p := range []string{final, sidecar, subtitle} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cleanupSidecars(dir, stem, final)

	if _, err := os.Stat(final); err != nil {
		t.Errorf("final artifact should survive: %v", err)
	}
	if _, err := os.Stat(sidecar); !os.IsNotExist(err) {
		t.Errorf("expected sidecar removed, err=%v", err)
	}
	if _, err := os.Stat(subtitle); !os.IsNotExist(err) {
		t.Errorf("expected language-suffixed subtitle removed, err=%v", err)
	}
}
