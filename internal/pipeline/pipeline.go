// Package pipeline implements the Job Pipeline (spec.md §4.5): it turns one
// dequeued queue.Job into zero or more on-disk artifacts, fanning
// per-item work across a bounded worker pool and reporting progress through
// the Progress Store as it goes.
package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fvitu/offliner/internal/engine"
	"github.com/fvitu/offliner/internal/models"
	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
	"github.com/fvitu/offliner/internal/resolver"
	"github.com/fvitu/offliner/internal/shared"
	"github.com/fvitu/offliner/internal/store"
)

// task is one (target, mode) pair dispatched to the worker pool.
type task struct {
	target models.Target
	mode   engine.Mode
}

// Pipeline wires together the Media Resolver, Download Engine, and Progress
// Store to execute one job end to end.
type Pipeline struct {
	Store     progress.Store
	Resolver  *resolver.Resolver
	Engine    *engine.Engine
	Ledger    *store.Ledger
	Logger    *log.Logger
	TempDir   string // root under which the pipeline creates session directories it owns
	OutputDir string // staging directory for artifacts when the pipeline owns the session
}

// New returns a Pipeline. logger may be nil.
func New(st progress.Store, res *resolver.Resolver, eng *engine.Engine, ledger *store.Ledger, logger *log.Logger, tempDir, outputDir string) *Pipeline {
	return &Pipeline{Store: st, Resolver: res, Engine: eng, Ledger: ledger, Logger: logger, TempDir: tempDir, OutputDir: outputDir}
}

// Execute runs job to completion: resolve, fan out, finalize, publish
// terminal state, teardown. Per spec.md §4.5, it never returns an error to
// the caller for a job-domain failure -- those are reported through the
// Progress Store and the job-history ledger. A returned error indicates the
// pipeline itself could not run (e.g. session directory could not be
// created).
func (p *Pipeline) Execute(ctx context.Context, job queue.Job) error {
	started := time.Now()
	ownsSession := job.SessionDir == ""

	sessionDir := job.SessionDir
	if ownsSession {
		sessionDir = filepath.Join(p.TempDir, job.RequestID)
	}
	if err := os.RemoveAll(sessionDir); err != nil {
		return fmt.Errorf("clear session directory: %w", err)
	}
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if ownsSession {
		defer os.RemoveAll(sessionDir)
	}

	credentialsPath, err := p.provisionCredentials(job.Config, sessionDir)
	if err != nil {
		p.publishError(ctx, job.RequestID, err)
		p.recordHistory(job, started, progress.PhaseError, nil, err)
		return nil
	}

	targets, err := p.Resolver.Resolve(ctx, resolver.Input{
		RawInput:              job.RawInput,
		PlaylistMode:          job.PlaylistMode,
		SelectedTargets:       job.Targets,
		PreferAlternateSource: job.Config.PreferAlternateSource,
		WantAudio:             job.Config.WantAudio,
		MaxPlaylistItems:      0,
	})
	if err != nil {
		p.publishError(ctx, job.RequestID, err)
		p.recordHistory(job, started, progress.PhaseError, nil, err)
		return nil
	}
	if len(targets) == 0 {
		noResults := fmt.Errorf("%w: no results for this input", shared.ErrResolutionFailed)
		p.publishError(ctx, job.RequestID, noResults)
		p.recordHistory(job, started, progress.PhaseError, nil, noResults)
		return nil
	}

	tasks := buildTasks(targets, job.Config, job.ItemOverrides)
	result := NewDownloadResult(job.RequestID, len(tasks))

	_ = p.Store.Update(ctx, job.RequestID, func(r *progress.Record) {
		r.TotalItems = len(tasks)
		r.TempDir = sessionDir
	})

	cancelled := p.runWorkerPool(ctx, job, tasks, result, sessionDir, credentialsPath)

	if cancelled {
		_ = p.Store.Update(ctx, job.RequestID, func(r *progress.Record) {
			r.Error = "Cancelled by client disconnect"
			r.Phase = progress.PhaseCancelled
			r.Complete = true
			r.Percent = 100
		})
		p.recordHistory(job, started, progress.PhaseCancelled, result, nil)
		return nil
	}

	if result.AllFailed() {
		failErr := fmt.Errorf("%w: all %d item(s) failed", shared.ErrDownloadAllFailed, result.TotalItems)
		p.publishError(ctx, job.RequestID, failErr)
		p.recordHistory(job, started, progress.PhaseError, result, failErr)
		return nil
	}

	artifact, err := p.finalize(result, sessionDir, job.Config.ZipName, job.RequestID, ownsSession)
	if err != nil {
		p.publishError(ctx, job.RequestID, err)
		p.recordHistory(job, started, progress.PhaseError, result, err)
		return nil
	}

	_ = p.Store.Update(ctx, job.RequestID, func(r *progress.Record) {
		r.FilePath = artifact
		r.Complete = true
		r.Percent = 100
		r.Status = "Done!"
		r.Phase = progress.PhaseDone
	})
	p.recordHistory(job, started, progress.PhaseDone, result, nil)
	return nil
}

// provisionCredentials writes a credentials file from UserConfig into
// sessionDir, either from blob text or by copying an existing path. Returns
// "" when no credentials were supplied. Only the fact of provisioning is
// logged, never the content.
func (p *Pipeline) provisionCredentials(cfg models.UserConfig, sessionDir string) (string, error) {
	if cfg.CredentialsBlob == "" && cfg.CredentialsPath == "" {
		return "", nil
	}

	dest := filepath.Join(sessionDir, "cookies.txt")

	if cfg.CredentialsBlob != "" {
		if err := os.WriteFile(dest, []byte(cfg.CredentialsBlob), 0o600); err != nil {
			return "", fmt.Errorf("write credentials: %w", err)
		}
	} else {
		data, err := shared.VerifyAndReadFile(cfg.CredentialsPath)
		if err != nil {
			return "", fmt.Errorf("read credentials source: %w", err)
		}
		if err := os.WriteFile(dest, data, 0o600); err != nil {
			return "", fmt.Errorf("write credentials: %w", err)
		}
	}

	if p.Logger != nil {
		p.Logger.Info("credentials provisioned", "session_dir", sessionDir)
	}
	return dest, nil
}

// buildTasks expands targets x requested modes, honoring per-item format
// overrides where present (spec.md §4.5 step 5). A non-empty
// ItemOverride.Mode narrows a target to just that one mode, overriding the
// request-wide want_audio/want_video selection (spec.md §9 "Per-item
// configuration overrides").
func buildTasks(targets []models.Target, cfg models.UserConfig, overrides map[string]models.ItemOverride) []task {
	var tasks []task
	for _, t := range targets {
		target := t
		wantAudio, wantVideo := cfg.WantAudio, cfg.WantVideo

		if ov, ok := overrides[t.SourceRef]; ok {
			target.FormatOverride = &ov
			switch ov.Mode {
			case models.ModeAudio:
				wantAudio, wantVideo = true, false
			case models.ModeVideo:
				wantAudio, wantVideo = false, true
			}
		}

		if wantAudio {
			tasks = append(tasks, task{target: target, mode: engine.ModeAudio})
		}
		if wantVideo {
			tasks = append(tasks, task{target: target, mode: engine.ModeVideo})
		}
	}
	return tasks
}

// runWorkerPool dispatches tasks across min(max_download_workers, |tasks|)
// cooperative workers, per spec.md §4.5 step 6-7. Returns true if
// cancellation was observed.
func (p *Pipeline) runWorkerPool(ctx context.Context, job queue.Job, tasks []task, result *DownloadResult, sessionDir, credentialsPath string) bool {
	workers := job.Config.MaxDownloadWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers == 0 {
		return false
	}

	taskCh := make(chan task, len(tasks))
	for _, tk := range tasks {
		taskCh <- tk
	}
	close(taskCh)

	var wg sync.WaitGroup
	var cancelledFlag atomicBool

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tk := range taskCh {
				if cancelledFlag.get() {
					continue
				}
				cancelled, _ := p.Store.IsCancelled(ctx, job.RequestID)
				if cancelled {
					cancelledFlag.set(true)
					continue
				}

				_ = p.Store.Update(ctx, job.RequestID, func(r *progress.Record) {
					r.Percent = result.ProgressPct()
					r.Status = "Downloading..."
					r.Phase = progress.PhaseDownloading
				})

				completedAtStart := func() int {
					completed, _, _ := result.Snapshot()
					return completed
				}

				res, err := p.Engine.Download(ctx, tk.target, tk.mode, job.Config, sessionDir, credentialsPath,
					engine.NewTransferHook(ctx, p.Store, engine.HookContext{
						RequestID:      job.RequestID,
						CompletedItems: completedAtStart,
						TotalItems:     result.TotalItems,
					}),
					engine.NewPostProcessHook(ctx, p.Store, job.RequestID),
				)

				if err != nil {
					if err == engine.ErrAborted {
						cancelledFlag.set(true)
					}
					result.RecordFailure(string(tk.mode))
					if p.Logger != nil {
						p.Logger.Warn("item download failed", "request_id", job.RequestID, "url", tk.target.URL, "err", err)
					}
					continue
				}

				result.RecordSuccess(string(tk.mode), res.FilePath)
				_ = p.Store.Update(ctx, job.RequestID, func(r *progress.Record) {
					completed, total, _ := result.Snapshot()
					r.CompletedItems = completed
					r.TotalItems = total
					r.Percent = result.ProgressPct()
				})
			}
		}()
	}

	wg.Wait()
	return cancelledFlag.get()
}

// finalize packs produced files into a ZIP when there is more than one,
// uses the single file directly when there is exactly one, and stages the
// artifact to OutputDir when the pipeline owns the session (spec.md §4.5
// "Finalize"/"Staging").
func (p *Pipeline) finalize(result *DownloadResult, sessionDir, zipName, requestID string, ownsSession bool) (string, error) {
	_, _, files := result.Snapshot()

	var artifact string
	switch len(files) {
	case 0:
		return "", nil
	case 1:
		artifact = files[0]
	default:
		name := zipName
		if name == "" {
			name = requestID
		}
		name = engine.SanitizeComponent(name)
		zipPath := filepath.Join(sessionDir, name+".zip")
		if err := packZip(zipPath, files); err != nil {
			return "", fmt.Errorf("pack zip: %w", err)
		}
		for _, f := range files {
			_ = os.Remove(f)
		}
		artifact = zipPath
	}

	if !ownsSession {
		return artifact, nil
	}

	return p.stage(artifact)
}

// stage copies artifact into OutputDir, suffixing a short random token on a
// name collision, per spec.md §4.5 "Staging".
func (p *Pipeline) stage(artifact string) (string, error) {
	if p.OutputDir == "" {
		return artifact, nil
	}
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	base := filepath.Base(artifact)
	dest := filepath.Join(p.OutputDir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		stem := base[:len(base)-len(ext)]
		token := shared.GenerateID()[:8]
		dest = filepath.Join(p.OutputDir, fmt.Sprintf("%s-%s%s", stem, token, ext))
	}

	if err := copyFile(artifact, dest); err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// packZip writes files into a new archive at zipPath, deduplicating
// basenames that collide.
func packZip(zipPath string, files []string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	seen := make(map[string]int)
	for _, path := range files {
		name := filepath.Base(path)
		if n := seen[name]; n > 0 {
			ext := filepath.Ext(name)
			stem := name[:len(name)-len(ext)]
			name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		seen[filepath.Base(path)]++

		if err := addFileToZip(w, path, name); err != nil {
			return err
		}
	}
	return nil
}

func addFileToZip(w *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func (p *Pipeline) publishError(ctx context.Context, requestID string, err error) {
	_ = p.Store.Update(ctx, requestID, func(r *progress.Record) {
		r.Error = err.Error()
		r.Complete = true
		r.Percent = 100
		r.Phase = progress.PhaseError
	})
}

func (p *Pipeline) recordHistory(job queue.Job, started time.Time, phase progress.Phase, result *DownloadResult, err error) {
	if p.Ledger == nil {
		return
	}
	entry := store.Entry{
		RequestID:      job.RequestID,
		ClientIdentity: job.ClientIdentity,
		Input:          job.RawInput,
		Phase:          string(phase),
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	if result != nil {
		entry.AudioOK = result.AudioOK
		entry.AudioErr = result.AudioErr
		entry.VideoOK = result.VideoOK
		entry.VideoErr = result.VideoErr
	}
	p.Ledger.Record(entry)
}
