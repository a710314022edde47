package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/fvitu/offliner/internal/progress"
)

// ErrAborted is raised by the transfer hook when it observes
// cancel_requested between byte updates; the engine translates it into a
// Cancelled outcome for the in-flight item (spec.md §4.4.1, §9).
var ErrAborted = errors.New("aborted: cancellation requested")

// HookContext carries the bits a hook needs to compute overall percent and
// identify which Progress Record to write to.
type HookContext struct {
	RequestID      string
	CompletedItems func() int
	TotalItems     int
}

const maxDetailLen = 60

// NewTransferHook returns the transfer-hook closure from spec.md §4.4.1: on
// every reported byte update it recomputes overall percent, writes the
// Progress Record, then checks is_cancelled before returning.
func NewTransferHook(ctx context.Context, store progress.Store, hc HookContext) func(ProgressEvent) error {
	return func(ev ProgressEvent) error {
		localPct := 0.0
		if ev.TotalBytes > 0 {
			localPct = float64(ev.DownloadedBytes) / float64(ev.TotalBytes)
		}

		total := hc.TotalItems
		if total < 1 {
			total = 1
		}
		completed := 0
		if hc.CompletedItems != nil {
			completed = hc.CompletedItems()
		}

		overall := 15 + ((float64(completed) + localPct) / float64(total) * 75)
		if overall > 90 {
			overall = 90
		}

		stem := strings.TrimSuffix(filepath.Base(ev.Filename), filepath.Ext(ev.Filename))
		detail := stem
		if len([]rune(detail)) > maxDetailLen {
			detail = string([]rune(detail)[:maxDetailLen])
		}

		_ = store.Update(ctx, hc.RequestID, func(r *progress.Record) {
			r.Percent = int(overall)
			r.Status = "Downloading..."
			r.Detail = detail
			r.CurrentFile = stem
			r.Speed = ev.Speed
			r.ETA = ev.ETA
			r.Phase = progress.PhaseDownloading
		})

		cancelled, err := store.IsCancelled(ctx, hc.RequestID)
		if err != nil {
			return nil
		}
		if cancelled {
			return ErrAborted
		}
		return nil
	}
}

var postProcessLabels = map[PostProcessor]string{
	PPSponsorBlock:     "Removing sponsored segments",
	PPAudioExtract:     "Extracting audio",
	PPMetadataTag:      "Tagging metadata",
	PPThumbnailConvert: "Converting thumbnail",
	PPEmbedThumbnail:   "Embedding cover art",
}

// NewPostProcessHook returns the post-process-hook closure from spec.md
// §4.4.1: on "started" it clears speed/eta and sets a humanized status.
func NewPostProcessHook(ctx context.Context, store progress.Store, requestID string) func(PostProcessEvent) {
	return func(ev PostProcessEvent) {
		if !ev.Started {
			return
		}

		label, ok := postProcessLabels[ev.Name]
		if !ok {
			label = string(ev.Name)
		}

		_ = store.Update(ctx, requestID, func(r *progress.Record) {
			r.Status = "Processing..."
			r.Detail = label
			r.Phase = progress.PhaseConverting
			r.Speed = ""
			r.ETA = ""
		})
	}
}
