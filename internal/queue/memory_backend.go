package queue

import (
	"context"
	"sync"
	"time"
)

// pollInterval is how often Dequeue re-checks the pending list while
// waiting out its timeout.
const pollInterval = 10 * time.Millisecond

// MemoryBackend is an in-process FIFO Backend used in tests and when no
// broker is configured.
type MemoryBackend struct {
	mu       sync.Mutex
	pending  []Job
	inflight map[string]Job
	closed   bool
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{inflight: make(map[string]Job)}
}

func (b *MemoryBackend) Enqueue(_ context.Context, job Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, job)
	return nil
}

func (b *MemoryBackend) tryDequeue() (Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return Job{}, false
	}
	job := b.pending[0]
	b.pending = b.pending[1:]
	b.inflight[job.RequestID] = job
	return job, true
}

func (b *MemoryBackend) Dequeue(ctx context.Context, timeout time.Duration) (Job, bool, error) {
	if job, ok := b.tryDequeue(); ok {
		return job, true, nil
	}
	if timeout <= 0 {
		return Job{}, false, nil
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Job{}, false, nil
		case <-ticker.C:
			if job, ok := b.tryDequeue(); ok {
				return job, true, nil
			}
			if time.Now().After(deadline) {
				return Job{}, false, nil
			}
		}
	}
}

func (b *MemoryBackend) Ack(_ context.Context, requestID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, requestID)
	return nil
}

func (b *MemoryBackend) Nack(_ context.Context, requestID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.inflight[requestID]
	if !ok {
		return nil
	}
	delete(b.inflight, requestID)
	b.pending = append([]Job{job}, b.pending...)
	return nil
}

func (b *MemoryBackend) Length(_ context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.pending)), nil
}

func (b *MemoryBackend) InFlight(_ context.Context) ([]Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	jobs := make([]Job, 0, len(b.inflight))
	for _, job := range b.inflight {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (b *MemoryBackend) Health(_ context.Context) HealthStatus {
	return HealthStatus{Healthy: true}
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
