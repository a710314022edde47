package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fvitu/offliner/internal/models"
)

// sidecarExtensions are deleted after a successful download, per spec.md
// §4.4 "Sidecar cleanup".
var sidecarExtensions = map[string]bool{
	".jpg": true, ".png": true, ".webp": true,
	".vtt": true, ".srt": true, ".ass": true,
}

// sponsorBlockFailureMarkers identify the one recognized post-process
// failure class that the engine retries around, per spec.md §4.4
// "Known-failure fallbacks".
var sponsorBlockFailureMarkers = []string{
	"SponsorBlock",
	"unexpected keyword argument 'action'",
}

// credentialedProbeFailureMarkers identify a 400-class probe failure caused
// by the forced internal-client extractor argument.
var credentialedProbeFailureMarkers = []string{
	"400", "client surface",
}

// Engine produces one on-disk artifact for one (Target, Mode, UserConfig)
// tuple, per spec.md §4.4. It never shells out directly; all external-tool
// interaction goes through MediaTool.
type Engine struct {
	Tool MediaTool
}

// NewEngine returns an Engine driving tool.
func NewEngine(tool MediaTool) *Engine {
	return &Engine{Tool: tool}
}

// Result is what one call to Download produced.
type Result struct {
	FilePath string
	Skipped  string // non-empty user-facing note, e.g. "SponsorBlock skipped after retry"
}

// Download runs the full pipeline for one target: pre-flight probe,
// download with known-failure fallbacks, final path resolution, sidecar
// cleanup.
func (e *Engine) Download(ctx context.Context, target models.Target, mode Mode, cfg models.UserConfig, sessionDir string, credentialsPath string, onProgress func(ProgressEvent) error, onPostProcess func(PostProcessEvent)) (Result, error) {
	opts, err := BuildOptions(target, mode, cfg, sessionDir, credentialsPath)
	if err != nil {
		return Result{}, fmt.Errorf("build options: %w", err)
	}

	if err := e.preflight(ctx, target.URL, &opts); err != nil {
		return Result{}, err
	}

	outcome, skipNote, err := e.downloadWithFallbacks(ctx, target.URL, opts, onProgress, onPostProcess)
	if err != nil {
		return Result{}, err
	}

	stem := Stem(target.Title, target.Uploader)
	finalPath := resolveFinalPath(outcome, sessionDir, stem, opts)

	cleanupSidecars(sessionDir, stem, finalPath)

	return Result{FilePath: finalPath, Skipped: skipNote}, nil
}

// preflight extracts info without downloading; if no playable formats are
// present and a credentials file is in use, it retries once without the
// forced internal-client argument, mutating opts on success.
func (e *Engine) preflight(ctx context.Context, url string, opts *Options) error {
	probe, err := e.Tool.Probe(ctx, url, *opts)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	if probe.HasPlayableFormats {
		return nil
	}
	if opts.CredentialsPath == "" {
		return fmt.Errorf("%w: no playable formats for %s", errNoPlayableFormats, url)
	}

	retryOpts := opts.withoutForcedClient()
	probe, err = e.Tool.Probe(ctx, url, retryOpts)
	if err != nil {
		return fmt.Errorf("probe retry %s: %w", url, err)
	}
	if !probe.HasPlayableFormats {
		return fmt.Errorf("%w: credentials may be invalid for %s", errNoPlayableFormats, url)
	}
	*opts = retryOpts
	return nil
}

// downloadWithFallbacks runs the download, applying the two named
// known-failure fallbacks (spec.md §4.4) on their first occurrence.
func (e *Engine) downloadWithFallbacks(ctx context.Context, url string, opts Options, onProgress func(ProgressEvent) error, onPostProcess func(PostProcessEvent)) (DownloadOutcome, string, error) {
	outcome, err := e.Tool.Download(ctx, url, opts, onProgress, onPostProcess)
	if err == nil {
		return outcome, "", nil
	}
	if err == ErrAborted {
		return DownloadOutcome{}, "", err
	}

	msg := err.Error()

	if containsAny(msg, sponsorBlockFailureMarkers) && opts.SponsorSkip {
		retryOpts := opts.withoutSponsorBlock()
		outcome, retryErr := e.Tool.Download(ctx, url, retryOpts, onProgress, onPostProcess)
		if retryErr == nil {
			return outcome, "SponsorBlock skipped after retry", nil
		}
		return DownloadOutcome{}, "", fmt.Errorf("download %s (after segment-removal fallback): %w", url, retryErr)
	}

	if containsAny(msg, credentialedProbeFailureMarkers) && opts.ForceInternalClient {
		retryOpts := opts.withoutForcedClient()
		outcome, retryErr := e.Tool.Download(ctx, url, retryOpts, onProgress, onPostProcess)
		if retryErr == nil {
			return outcome, "", nil
		}
		return DownloadOutcome{}, "", fmt.Errorf("download %s (after client fallback): %w", url, retryErr)
	}

	return DownloadOutcome{}, "", fmt.Errorf("download %s: %w", url, err)
}

// resolveFinalPath implements spec.md §4.4 "Final path resolution": prefer
// the tool's own reported path, then scan the session directory for the
// largest matching non-sidecar file, then reconstruct a path.
func resolveFinalPath(outcome DownloadOutcome, sessionDir, stem string, opts Options) string {
	if outcome.ConvertedPath != "" {
		return outcome.ConvertedPath
	}
	if outcome.ReportedFilePath != "" {
		return outcome.ReportedFilePath
	}

	entries, err := os.ReadDir(sessionDir)
	if err == nil {
		var best string
		var bestSize int64
		for _, ent := range entries {
			if ent.IsDir() || !strings.HasPrefix(ent.Name(), stem) {
				continue
			}
			if sidecarExtensions[filepath.Ext(ent.Name())] {
				continue
			}
			info, err := ent.Info()
			if err != nil {
				continue
			}
			if info.Size() > bestSize {
				best = ent.Name()
				bestSize = info.Size()
			}
		}
		if best != "" {
			return filepath.Join(sessionDir, best)
		}
	}

	container := containerExt(opts)
	return filepath.Join(sessionDir, stem+"."+container)
}

func containerExt(opts Options) string {
	if opts.Mode == ModeAudio {
		return string(opts.AudioFormat)
	}
	return string(opts.VideoContainer)
}

// cleanupSidecars deletes sibling sidecar files (thumbnails, subtitles) for
// stem, skipping the final artifact itself.
func cleanupSidecars(sessionDir, stem, finalPath string) {
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		return
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		if !strings.HasPrefix(name, stem) {
			continue
		}
		full := filepath.Join(sessionDir, name)
		if full == finalPath {
			continue
		}
		if isSidecarName(name, stem) {
			_ = os.Remove(full)
		}
	}
}

// isSidecarName recognizes both plain sidecar extensions and
// language-suffixed subtitle variants (<stem>.en.srt, <stem>.es-orig.vtt).
func isSidecarName(name, stem string) bool {
	ext := filepath.Ext(name)
	if sidecarExtensions[ext] {
		return true
	}
	rest := strings.TrimPrefix(name, stem)
	if (strings.HasSuffix(rest, ".srt") || strings.HasSuffix(rest, ".vtt")) && strings.Count(rest, ".") >= 2 {
		return true
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
