package pipeline

import "sync"

// DownloadResult accumulates the outcome of one job's fanned-out tasks. All
// fields are protected by mu; methods never call back into I/O while
// holding the lock (spec.md §5 "Shared resources").
type DownloadResult struct {
	mu sync.Mutex

	RequestID      string
	TotalItems     int
	CompletedItems int

	AudioOK  int
	AudioErr int
	VideoOK  int
	VideoErr int

	ProducedFiles []string
}

// NewDownloadResult returns an empty accumulator for requestID expecting
// totalItems tasks.
func NewDownloadResult(requestID string, totalItems int) *DownloadResult {
	return &DownloadResult{RequestID: requestID, TotalItems: totalItems}
}

// RecordSuccess marks one task of the given mode as complete and appends
// path to the produced-files list.
func (r *DownloadResult) RecordSuccess(mode string, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch mode {
	case "audio":
		r.AudioOK++
	case "video":
		r.VideoOK++
	}
	if path != "" {
		r.ProducedFiles = append(r.ProducedFiles, path)
	}
	r.CompletedItems++
}

// RecordFailure marks one task of the given mode as failed.
func (r *DownloadResult) RecordFailure(mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch mode {
	case "audio":
		r.AudioErr++
	case "video":
		r.VideoErr++
	}
	r.CompletedItems++
}

// ProgressPct is the intermediate-progress formula from spec.md §4.5 step
// 6b: 15 + (completed_items/total_items) * 70.
func (r *DownloadResult) ProgressPct() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progressPctLocked()
}

func (r *DownloadResult) progressPctLocked() int {
	if r.TotalItems <= 0 {
		return 15
	}
	pct := 15 + (float64(r.CompletedItems)/float64(r.TotalItems))*70
	return int(pct)
}

// Snapshot returns a consistent read of completed/total/produced-files
// under the lock.
func (r *DownloadResult) Snapshot() (completed, total int, files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ProducedFiles))
	copy(out, r.ProducedFiles)
	return r.CompletedItems, r.TotalItems, out
}

// AllFailed reports whether every dispatched task ended in failure (used to
// decide the job-level terminal error vs partial success).
func (r *DownloadResult) AllFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	dispatched := r.AudioOK + r.AudioErr + r.VideoOK + r.VideoErr
	failed := r.AudioErr + r.VideoErr
	return dispatched > 0 && failed == dispatched
}
