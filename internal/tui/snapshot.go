package tui

import (
	"context"
	"time"

	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
)

// pollInterval is how often the dashboard re-reads broker and progress
// state.
const pollInterval = 2 * time.Second

// JobView pairs an in-flight queue.Job with its current Progress Record, the
// unit the dashboard's job list renders.
type JobView struct {
	Job    queue.Job
	Record progress.Record
}

// Snapshot is one poll's worth of dashboard state.
type Snapshot struct {
	QueueLength int64
	Health      queue.HealthStatus
	Jobs        []JobView
	Err         error
}

// poll reads queue length, broker health, and every in-flight job's Progress
// Record. Partial failures (e.g. a record missing because it expired) don't
// fail the whole snapshot; they surface as progress.NotFound entries.
func poll(ctx context.Context, backend queue.Backend, store progress.Store) Snapshot {
	length, err := backend.Length(ctx)
	if err != nil {
		return Snapshot{Err: err}
	}

	health := backend.Health(ctx)

	jobs, err := backend.InFlight(ctx)
	if err != nil {
		return Snapshot{QueueLength: length, Health: health, Err: err}
	}

	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		rec, err := store.Get(ctx, job.RequestID)
		if err != nil {
			rec = progress.NotFound()
		}
		views = append(views, JobView{Job: job, Record: rec})
	}

	return Snapshot{QueueLength: length, Health: health, Jobs: views}
}
