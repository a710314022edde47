// package store holds the job-history ledger, a SQLite-backed audit trail of
// completed and failed jobs kept alongside the hot-path progress store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fvitu/offliner/internal/repositories"
	"github.com/fvitu/offliner/internal/shared"
)

// Entry is one row of job-history: the terminal outcome of a single request.
type Entry struct {
	ID             string
	RequestID      string
	ClientIdentity string
	Input          string
	Phase          string
	AudioOK        int
	AudioErr       int
	VideoOK        int
	VideoErr       int
	ErrorMessage   string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Ledger appends job-history entries to SQLite off the hot path. Callers send
// to C; a single goroutine started by Run drains it so pipeline workers never
// block on a disk write.
type Ledger struct {
	db  *sql.DB
	log *log.Logger
	C   chan Entry
}

// NewLedger opens path (creating parent directories as needed), runs pending
// migrations, and returns a Ledger with a buffered channel of size buf.
func NewLedger(path string, buf int, logger *log.Logger) (*Ledger, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("open job history database: %w", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run job history migrations: %w", err)
	}

	return &Ledger{db: db, log: logger, C: make(chan Entry, buf)}, nil
}

// Run drains C until ctx is cancelled, writing each Entry to job_history.
// Write failures are logged, never returned or retried: a ledger outage must
// not stall the pipeline that feeds it.
func (l *Ledger) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-l.C:
			if !ok {
				return
			}
			if err := l.insert(entry); err != nil && l.log != nil {
				l.log.Error("job history write failed", "request_id", entry.RequestID, "err", err)
			}
		}
	}
}

func (l *Ledger) insert(e Entry) error {
	seq, err := repositories.NextSequence(l.db, "job_history")
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	if e.ID == "" {
		e.ID = shared.GenerateID()
	}

	var finishedAt any
	if !e.FinishedAt.IsZero() {
		finishedAt = e.FinishedAt
	}

	_, err = l.db.Exec(`
		INSERT INTO job_history (
			id, sequence, request_id, client_identity, input, phase,
			audio_ok, audio_err, video_ok, video_err, error_message,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, seq, e.RequestID, e.ClientIdentity, e.Input, e.Phase,
		e.AudioOK, e.AudioErr, e.VideoOK, e.VideoErr, nullableString(e.ErrorMessage),
		e.StartedAt, finishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job_history row: %w", err)
	}
	return nil
}

// Record is a non-blocking best-effort send: if the buffer is full the entry
// is dropped and logged rather than stalling the caller.
func (l *Ledger) Record(e Entry) {
	select {
	case l.C <- e:
	default:
		if l.log != nil {
			l.log.Warn("job history buffer full, dropping entry", "request_id", e.RequestID)
		}
	}
}

// Close closes the underlying database handle. Callers should stop sending
// to C and let Run drain before calling Close.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
