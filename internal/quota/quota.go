// Package quota implements the per-client sliding-window Quota Tracker
// (spec.md §4.6): an in-process, mutex-guarded map checked before a job is
// accepted onto the queue.
package quota

import (
	"fmt"
	"sync"
	"time"

	"github.com/fvitu/offliner/internal/shared"
)

// Limits are the configurable windows and caps spec.md §4.6 names.
type Limits struct {
	MaxDownloadsPerHour       int
	MaxDownloadsPerDay        int
	MaxDurationMinutesPerHour int
	MaxDurationMinutesPerDay  int
	MaxContentDurationMinutes int
	MaxPlaylistItems          int
}

// Violation describes a denied check: which reason tripped and the
// offending numbers, so the HTTP edge can report something actionable.
type Violation struct {
	Reason   shared.QuotaReason
	Observed float64
	Cap      float64
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: observed %.1f, cap %.1f", v.Reason, v.Observed, v.Cap)
}

type entry struct {
	at time.Time
}

// clientWindows holds one client's sliding-window history. Downloads and
// duration share the same entry timestamps one-to-one (one entry per
// downloaded item, Duration weighted in minutes).
type clientWindows struct {
	downloads []entry
	minutes   []struct {
		at      time.Time
		minutes float64
	}
}

// Tracker is the Quota Tracker: an in-process, mutex-guarded map of
// per-client sliding-window deques (spec.md §5 "Shared resources").
type Tracker struct {
	mu      sync.Mutex
	clients map[string]*clientWindows
	limits  Limits
	now     func() time.Time
}

// New returns a Tracker enforcing limits. now defaults to time.Now; tests
// may override it to make window-boundary behavior deterministic.
func New(limits Limits, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		clients: make(map[string]*clientWindows),
		limits:  limits,
		now:     now,
	}
}

// Check evaluates the five ordered violations from spec.md §4.6 against
// identity's current sliding windows plus the projected addition of one
// item of the given duration, returning the first violation found (nil if
// allowed). Ties (observed == cap) are violations.
func (t *Tracker) Check(identity string, duration time.Duration) error {
	contentMinutes := duration.Minutes()
	if t.limits.MaxContentDurationMinutes > 0 && contentMinutes >= float64(t.limits.MaxContentDurationMinutes) {
		return Violation{Reason: shared.QuotaReasonContentDuration, Observed: contentMinutes, Cap: float64(t.limits.MaxContentDurationMinutes)}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w := t.clients[identity]
	if w == nil {
		w = &clientWindows{}
	}
	t.pruneLocked(w, now)

	hourlyCount := len(filterSince(w.downloads, now.Add(-time.Hour)))
	if t.limits.MaxDownloadsPerHour > 0 && hourlyCount >= t.limits.MaxDownloadsPerHour {
		return Violation{Reason: shared.QuotaReasonHourlyCount, Observed: float64(hourlyCount), Cap: float64(t.limits.MaxDownloadsPerHour)}
	}

	dailyCount := len(filterSince(w.downloads, now.Add(-24*time.Hour)))
	if t.limits.MaxDownloadsPerDay > 0 && dailyCount >= t.limits.MaxDownloadsPerDay {
		return Violation{Reason: shared.QuotaReasonDailyCount, Observed: float64(dailyCount), Cap: float64(t.limits.MaxDownloadsPerDay)}
	}

	hourlyMinutes := sumSince(w.minutes, now.Add(-time.Hour)) + contentMinutes
	if t.limits.MaxDurationMinutesPerHour > 0 && hourlyMinutes >= float64(t.limits.MaxDurationMinutesPerHour) {
		return Violation{Reason: shared.QuotaReasonHourlyDuration, Observed: hourlyMinutes, Cap: float64(t.limits.MaxDurationMinutesPerHour)}
	}

	dailyMinutes := sumSince(w.minutes, now.Add(-24*time.Hour)) + contentMinutes
	if t.limits.MaxDurationMinutesPerDay > 0 && dailyMinutes >= float64(t.limits.MaxDurationMinutesPerDay) {
		return Violation{Reason: shared.QuotaReasonDailyDuration, Observed: dailyMinutes, Cap: float64(t.limits.MaxDurationMinutesPerDay)}
	}

	return nil
}

// Record appends count timestamped entries to identity's hourly and daily
// windows, each carrying duration's minutes. Called once a job is actually
// accepted, never speculatively.
func (t *Tracker) Record(identity string, duration time.Duration, count int) {
	if count <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w := t.clients[identity]
	if w == nil {
		w = &clientWindows{}
		t.clients[identity] = w
	}

	minutes := duration.Minutes()
	for i := 0; i < count; i++ {
		w.downloads = append(w.downloads, entry{at: now})
		w.minutes = append(w.minutes, struct {
			at      time.Time
			minutes float64
		}{at: now, minutes: minutes})
	}
}

// pruneLocked drops entries older than the daily window; the caller holds
// t.mu.
func (t *Tracker) pruneLocked(w *clientWindows, now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	w.downloads = filterSince(w.downloads, cutoff)

	kept := w.minutes[:0]
	for _, m := range w.minutes {
		if !m.at.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	w.minutes = kept
}

func filterSince(entries []entry, cutoff time.Time) []entry {
	var out []entry
	for _, e := range entries {
		if !e.at.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func sumSince(entries []struct {
	at      time.Time
	minutes float64
}, cutoff time.Time) float64 {
	var total float64
	for _, e := range entries {
		if !e.at.Before(cutoff) {
			total += e.minutes
		}
	}
	return total
}
