package models

import (
	"fmt"
	"os"
	"time"
)

// Quality selects the bitrate/resolution tier used when building selector
// expressions in the download engine.
type Quality string

const (
	QualityMin Quality = "min"
	QualityAvg Quality = "avg"
	QualityMax Quality = "max"
)

func (q Quality) valid() bool {
	switch q {
	case QualityMin, QualityAvg, QualityMax:
		return true
	}
	return false
}

// AudioFormat is a final audio container/codec choice.
type AudioFormat string

const (
	AudioMP3  AudioFormat = "mp3"
	AudioWAV  AudioFormat = "wav"
	AudioM4A  AudioFormat = "m4a"
	AudioFLAC AudioFormat = "flac"
)

func (f AudioFormat) valid() bool {
	switch f {
	case AudioMP3, AudioWAV, AudioM4A, AudioFLAC:
		return true
	}
	return false
}

// VideoFormat is a final video container choice.
type VideoFormat string

const (
	VideoMP4  VideoFormat = "mp4"
	VideoMOV  VideoFormat = "mov"
	VideoMKV  VideoFormat = "mkv"
	VideoWebM VideoFormat = "webm"
)

func (f VideoFormat) valid() bool {
	switch f {
	case VideoMP4, VideoMOV, VideoMKV, VideoWebM:
		return true
	}
	return false
}

// Platform tags a Target or a resolved input with the catalog it came from.
type Platform string

const (
	// PlatformGeneral is the general-purpose video catalog (yt-dlp's primary target).
	PlatformGeneral Platform = "general"
	// PlatformCatalog is the music-license-centric catalog used for alternate-source resolution.
	PlatformCatalog Platform = "catalog"
	// PlatformMusic is the general catalog's music-specialized frontend.
	PlatformMusic Platform = "music"
	PlatformUnknown Platform = "unknown"
)

// UserConfig is a validated snapshot of the recognized download options.
// It is carried on the Request and on the queued job record, and it is
// never logged in full because CredentialsBlob may hold a raw cookie jar.
type UserConfig struct {
	Quality               Quality     `json:"quality"`
	AudioFormat           AudioFormat `json:"audio_format"`
	VideoFormat           VideoFormat `json:"video_format"`
	WantAudio             bool        `json:"want_audio"`
	WantVideo             bool        `json:"want_video"`
	PreferAlternateSource bool        `json:"prefer_alternate_source"`
	EmbedMetadata         bool        `json:"embed_metadata"`
	SponsorSkipEnabled    bool        `json:"sponsor_skip_enabled"`
	SponsorSkipCategories []string    `json:"sponsor_skip_categories,omitempty"`
	CredentialsBlob       string      `json:"credentials_blob,omitempty"`
	CredentialsPath       string      `json:"credentials_path,omitempty"`
	MaxDownloadWorkers    int         `json:"max_download_workers"`
	ZipName               string      `json:"zip_name,omitempty"` // user-supplied archive name, sanitized before use; falls back to the request id when empty
}

// DefaultUserConfig returns the baseline configuration applied before a
// client's overrides are merged in.
func DefaultUserConfig() UserConfig {
	return UserConfig{
		Quality:            QualityAvg,
		AudioFormat:        AudioMP3,
		VideoFormat:        VideoMP4,
		WantAudio:          true,
		WantVideo:          false,
		EmbedMetadata:      true,
		MaxDownloadWorkers: 4,
	}
}

// Validate checks that every enumerated option holds a recognized value and
// that mutually exclusive fields are not both set.
func (c UserConfig) Validate() error {
	if !c.Quality.valid() {
		return fmt.Errorf("%w: quality %q", ErrInvalidModel, c.Quality)
	}
	if !c.AudioFormat.valid() {
		return fmt.Errorf("%w: audio_format %q", ErrInvalidModel, c.AudioFormat)
	}
	if !c.VideoFormat.valid() {
		return fmt.Errorf("%w: video_format %q", ErrInvalidModel, c.VideoFormat)
	}
	if !c.WantAudio && !c.WantVideo {
		return fmt.Errorf("%w: at least one of want_audio/want_video must be set", ErrInvalidModel)
	}
	if c.CredentialsBlob != "" && c.CredentialsPath != "" {
		return fmt.Errorf("%w: credentials_blob and credentials_path are mutually exclusive", ErrInvalidModel)
	}
	if c.MaxDownloadWorkers < 1 {
		return fmt.Errorf("%w: max_download_workers must be >= 1", ErrInvalidModel)
	}
	return nil
}

// ItemOverride narrows a Target's effective mode and format choice away
// from the Request-wide UserConfig, keyed by the target's source reference
// in Request.ItemOverrides. Per spec.md §9 it enumerates only
// {mode, audio_format, video_format}; Mode empty means "use the request-wide
// want_audio/want_video selection" rather than restricting to one mode.
type ItemOverride struct {
	Mode        Mode        `json:"mode,omitempty"`
	AudioFormat AudioFormat `json:"audio_format,omitempty"`
	VideoFormat VideoFormat `json:"video_format,omitempty"`
}

// Mode selects which output(s) an ItemOverride restricts a target to.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeVideo Mode = "video"
)

// Target is a single concrete item the engine will download.
type Target struct {
	SourceRef      string `json:"source_ref"` // opaque identifier from the originating catalog
	URL            string `json:"url"`        // normalized URL handed to the download engine
	Title          string `json:"title"`
	Uploader       string `json:"uploader"`
	AlbumName      string `json:"album_name,omitempty"` // populated lazily during metadata embedding, not resolution
	Duration       time.Duration `json:"duration"`
	Platform       Platform `json:"platform"`
	FormatOverride *ItemOverride `json:"format_override,omitempty"`
}

// Request is created by the HTTP edge and is immutable once enqueued.
type Request struct {
	ID              string
	RawInput        string
	PlaylistMode    bool
	SelectedTargets []Target
	Config          UserConfig
	ItemOverrides   map[string]ItemOverride // target source ref -> override
	ClientIdentity  string
}

// Validate checks structural invariants of a Request before it is handed to
// the task broker.
func (r Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: request id is required", ErrInvalidModel)
	}
	if r.RawInput == "" && len(r.SelectedTargets) == 0 {
		return fmt.Errorf("%w: empty input", ErrEmptyInput)
	}
	if r.ClientIdentity == "" {
		return fmt.Errorf("%w: client identity is required", ErrInvalidModel)
	}
	return r.Config.Validate()
}

// Session owns the scratch directory and optional credentials file for one
// pipeline run. It is created by the Job Pipeline and destroyed on every
// exit path, success or failure.
type Session struct {
	RequestID       string
	Dir             string
	CredentialsPath string
}

// NewSession creates the session's scratch directory under root.
func NewSession(root, requestID string) (*Session, error) {
	dir := root + string(os.PathSeparator) + requestID
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear session directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Session{RequestID: requestID, Dir: dir}, nil
}

// Close removes the session directory and everything in it, including any
// credentials file written at session start.
func (s *Session) Close() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// ErrInvalidModel is returned when a model fails validation.
var ErrInvalidModel = fmt.Errorf("invalid model")

// ErrEmptyInput is returned when a Request carries no raw input and no
// pre-selected targets.
var ErrEmptyInput = fmt.Errorf("empty input")
