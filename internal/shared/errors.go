package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Timeout and cancellation
	ErrTimeout   = fmt.Errorf("operation timed out")
	ErrCancelled = fmt.Errorf("cancelled")

	// Backing-service errors: the process-external dependencies a job
	// touches (progress store, broker) may be unreachable independent of
	// anything the caller did wrong.
	ErrStoreUnavailable  = fmt.Errorf("progress store unavailable")
	ErrBrokerUnavailable = fmt.Errorf("task broker unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrEmptyInput      = fmt.Errorf("empty input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	// Quota errors: a request was rejected before it reached the queue.
	ErrQuotaExceeded = fmt.Errorf("quota exceeded")

	// Resolution errors: the Media Resolver could not turn the job's input
	// into a downloadable Target.
	ErrResolutionFailed = fmt.Errorf("resolution failed")

	// Download Engine and Job Pipeline errors
	ErrDownloadItemFailed  = fmt.Errorf("download item failed")
	ErrDownloadAllFailed   = fmt.Errorf("all downloads failed")
	ErrExternalToolFailed  = fmt.Errorf("external tool failed")
)

// QuotaReason labels which sliding-window limit a QuotaExceeded error
// tripped, so the HTTP edge can report a specific, actionable message. The
// check order in internal/quota evaluates these top to bottom, returning
// the first violation.
type QuotaReason string

const (
	QuotaReasonContentDuration QuotaReason = "content_duration_exceeded"
	QuotaReasonHourlyCount     QuotaReason = "hourly_downloads_exceeded"
	QuotaReasonDailyCount      QuotaReason = "daily_downloads_exceeded"
	QuotaReasonHourlyDuration  QuotaReason = "hourly_duration_exceeded"
	QuotaReasonDailyDuration   QuotaReason = "daily_duration_exceeded"
)
