package queue

import (
	"encoding/json"
	"time"

	"github.com/fvitu/offliner/internal/models"
)

// Timeout is the maximum time a worker may hold a dequeued job before it is
// considered abandoned and eligible for redelivery.
const Timeout = 30 * time.Minute

// Job is the durable record enqueued by the HTTP edge and consumed by a
// worker. Redelivery after a worker crash is safe because the pipeline
// clears and recreates the session directory at the start of every run.
type Job struct {
	RequestID      string                          `json:"request_id"`
	RawInput       string                          `json:"raw_input"`
	PlaylistMode   bool                            `json:"playlist_mode"`
	Config         models.UserConfig               `json:"config"`
	Targets        []models.Target                 `json:"targets,omitempty"`
	ItemOverrides  map[string]models.ItemOverride   `json:"item_overrides,omitempty"`
	SessionDir     string                           `json:"session_dir"`
	BrokerAddr     string                           `json:"broker_addr"`
	ClientIdentity string                           `json:"client_identity"`
	EnqueuedAt     time.Time                        `json:"enqueued_at"`
}

// Marshal serializes a Job for storage in the broker.
func (j Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// Unmarshal decodes a Job previously produced by Marshal.
func Unmarshal(data []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(data, &j)
	return j, err
}
