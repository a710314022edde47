package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
	"github.com/fvitu/offliner/internal/quota"
	"github.com/fvitu/offliner/internal/shared"
)

// JobService is the narrow interface the HTTP edge depends on (spec.md §9):
// enqueue a job, observe its progress. Handlers never reach into the
// broker or progress store directly.
type JobService interface {
	Enqueue(ctx context.Context, req DownloadRequest) (requestID string, err error)
	Observe(ctx context.Context, requestID string) (progress.Record, error)
}

// Canceller lets the progress-stream handler signal cooperative
// cancellation on client disconnect (spec.md §5 "Cancellation semantics").
type Canceller interface {
	RequestCancel(ctx context.Context, requestID string) error
}

// ArtifactServer lets the download handler resolve and remove a completed
// job's artifact (spec.md §6 "GET /download_file/{request_id}").
type ArtifactServer interface {
	ArtifactPath(ctx context.Context, requestID string) (string, error)
	Cleanup(ctx context.Context, requestID string)
}

// Service is the concrete JobService/Canceller/ArtifactServer
// implementation: it wraps the Task Broker, the Progress Store, and the
// Quota Tracker behind the server package's own interfaces.
type Service struct {
	Backend queue.Backend
	Store   progress.Store
	Quota   *quota.Tracker
	Logger  *log.Logger

	// BrokerAddr is copied onto every enqueued job record (spec.md §4.2
	// "Contract"); it is informational only in this implementation since
	// Backend already carries its own connection.
	BrokerAddr string

	// removeDelay is how long Cleanup waits before deleting the Progress
	// Record after the artifact has been served, per spec.md §6
	// ("schedules Progress Record removal after ~30 s").
	removeDelay time.Duration
}

// NewService returns a Service. removeDelay defaults to 30s when zero.
func NewService(backend queue.Backend, store progress.Store, tracker *quota.Tracker, logger *log.Logger, removeDelay time.Duration) *Service {
	if removeDelay <= 0 {
		removeDelay = 30 * time.Second
	}
	return &Service{Backend: backend, Store: store, Quota: tracker, Logger: logger, removeDelay: removeDelay}
}

// Enqueue validates req, checks the Quota Tracker, creates the Progress
// Record, and appends a queue.Job, per spec.md §6/§7. A quota violation or
// an empty-input request never reaches the broker and never creates a
// Progress Record (spec.md §7 end-to-end scenario 4).
func (s *Service) Enqueue(ctx context.Context, req DownloadRequest) (string, error) {
	if req.InputURL == "" && len(req.SelectedURLs) == 0 {
		return "", fmt.Errorf("%w: empty input", shared.ErrEmptyInput)
	}
	if req.ClientIdentity == "" {
		return "", fmt.Errorf("%w: missing client identity", shared.ErrInvalidInput)
	}
	if err := req.UserConfig.Validate(); err != nil {
		return "", err
	}

	if s.Quota != nil {
		if err := s.Quota.Check(req.ClientIdentity, req.totalDuration()); err != nil {
			return "", fmt.Errorf("%w: %w", shared.ErrQuotaExceeded, err)
		}
	}

	requestID := shared.GenerateID()

	totalItems := len(req.SelectedURLs)
	if totalItems == 0 {
		totalItems = 1
	}
	if err := s.Store.Create(ctx, requestID, totalItems); err != nil {
		return "", fmt.Errorf("create progress record: %w", err)
	}

	job := queue.Job{
		RequestID:      requestID,
		RawInput:       req.InputURL,
		PlaylistMode:   req.PlaylistMode,
		Config:         req.UserConfig,
		Targets:        req.targets(),
		ItemOverrides:  req.ItemConfigs,
		BrokerAddr:     s.BrokerAddr,
		ClientIdentity: req.ClientIdentity,
		EnqueuedAt:     time.Now(),
	}
	if err := s.Backend.Enqueue(ctx, job); err != nil {
		_ = s.Store.Remove(ctx, requestID)
		return "", err
	}

	if s.Quota != nil {
		s.Quota.Record(req.ClientIdentity, req.totalDuration(), 1)
	}

	return requestID, nil
}

// Observe returns the current Progress Record for requestID.
func (s *Service) Observe(ctx context.Context, requestID string) (progress.Record, error) {
	return s.Store.Get(ctx, requestID)
}

// RequestCancel sets cancel_requested, per spec.md §5.
func (s *Service) RequestCancel(ctx context.Context, requestID string) error {
	return s.Store.RequestCancel(ctx, requestID)
}

// ArtifactPath returns the published file_path for a terminally successful
// job, erroring if the job isn't done or has no artifact.
func (s *Service) ArtifactPath(ctx context.Context, requestID string) (string, error) {
	rec, err := s.Store.Get(ctx, requestID)
	if err != nil {
		return "", err
	}
	if !rec.Complete || rec.FilePath == "" {
		return "", fmt.Errorf("%w: no artifact available for %s", shared.ErrInvalidInput, requestID)
	}
	if _, err := os.Stat(rec.FilePath); err != nil {
		return "", fmt.Errorf("artifact missing on disk: %w", err)
	}
	return rec.FilePath, nil
}

// Cleanup removes the served artifact immediately and schedules Progress
// Record removal after removeDelay, per spec.md §6. It never blocks the
// caller.
func (s *Service) Cleanup(ctx context.Context, requestID string) {
	rec, err := s.Store.Get(ctx, requestID)
	if err == nil && rec.FilePath != "" {
		if rmErr := os.Remove(rec.FilePath); rmErr != nil && s.Logger != nil {
			s.Logger.Warn("artifact cleanup failed", "request_id", requestID, "err", rmErr)
		}
	}

	go func() {
		time.Sleep(s.removeDelay)
		_ = s.Store.Remove(context.Background(), requestID)
	}()
}

var _ JobService = (*Service)(nil)
var _ Canceller = (*Service)(nil)
var _ ArtifactServer = (*Service)(nil)
