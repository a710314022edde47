package progress

// Phase is the coarse stage of a job's lifecycle, surfaced to clients
// alongside the finer-grained status/detail strings.
type Phase string

const (
	PhasePreparing  Phase = "preparing"
	PhaseDownloading Phase = "downloading"
	PhaseConverting Phase = "converting"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	PhaseError      Phase = "error"
	PhaseCancelled  Phase = "cancelled"
)

// Record is the full shape of one progress entry, serialized as JSON under
// key "progress:{request_id}".
type Record struct {
	Percent         int    `json:"percent"`
	Phase           Phase  `json:"phase"`
	Status          string `json:"status"`
	Detail          string `json:"detail"`
	Speed           string `json:"speed"`
	ETA             string `json:"eta"`
	CurrentFile     string `json:"current_file"`
	CompletedItems  int    `json:"completed_items"`
	TotalItems      int    `json:"total_items"`
	Complete        bool   `json:"complete"`
	Error           string `json:"error,omitempty"`
	FilePath        string `json:"file_path,omitempty"`
	TempDir         string `json:"temp_dir"`
	CancelRequested bool   `json:"cancel_requested"`
}

// NotFound is the synthetic record returned by Get when no record exists
// for the requested id.
func NotFound() Record {
	return Record{
		Phase: PhaseError,
		Error: "Session not found",
	}
}

// Mutate applies fn to a copy of r and returns it. cancel_requested is
// monotonic: Store implementations re-OR it in after fn runs so a caller
// can never accidentally clear it with a stale copy.
func (r Record) Mutate(fn func(*Record)) Record {
	out := r
	fn(&out)
	if r.CancelRequested {
		out.CancelRequested = true
	}
	return out
}
