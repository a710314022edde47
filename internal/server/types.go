package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fvitu/offliner/internal/models"
)

// SelectedItem is one entry of the playlist-mode `selected_urls` JSON array.
// A plain JSON string decodes into just URL; an object carries the
// lightweight metadata the front-end already has on hand (so the Quota
// Tracker's content-duration check has something to evaluate before the
// Media Resolver ever runs).
type SelectedItem struct {
	URL             string `json:"url"`
	Title           string `json:"title,omitempty"`
	Uploader        string `json:"uploader,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// UnmarshalJSON accepts either a bare URL string or a full object, so
// callers that only have a list of URLs aren't forced to wrap them.
func (s *SelectedItem) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		s.URL = url
		return nil
	}

	type alias SelectedItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode selected_urls entry: %w", err)
	}
	*s = SelectedItem(a)
	return nil
}

func (s SelectedItem) toTarget() models.Target {
	return models.Target{
		SourceRef: s.URL,
		URL:       s.URL,
		Title:     s.Title,
		Uploader:  s.Uploader,
		Duration:  time.Duration(s.DurationSeconds) * time.Second,
	}
}

// DownloadRequest is the decoded form of POST /download, per spec.md §6:
// `inputURL`, `is_playlist_mode`, `selected_urls` (JSON), `user_config`
// (JSON), `item_configs` (JSON), plus the opaque client identity token used
// only for quota accounting (spec.md §3 "Request").
type DownloadRequest struct {
	InputURL       string
	PlaylistMode   bool
	SelectedURLs   []SelectedItem
	UserConfig     models.UserConfig
	ItemConfigs    map[string]models.ItemOverride
	ClientIdentity string
}

// parseDownloadRequest decodes the multipart/urlencoded form fields named in
// spec.md §6. Empty selected_urls/item_configs fields are treated as "not
// provided", not a JSON error.
func parseDownloadRequest(inputURL, isPlaylistMode, selectedURLsJSON, userConfigJSON, itemConfigsJSON, clientIdentity string) (DownloadRequest, error) {
	req := DownloadRequest{
		InputURL:       inputURL,
		PlaylistMode:   isPlaylistMode == "true" || isPlaylistMode == "1" || isPlaylistMode == "on",
		ClientIdentity: clientIdentity,
		UserConfig:     models.DefaultUserConfig(),
	}

	if selectedURLsJSON != "" {
		if err := json.Unmarshal([]byte(selectedURLsJSON), &req.SelectedURLs); err != nil {
			return DownloadRequest{}, fmt.Errorf("decode selected_urls: %w", err)
		}
	}

	if userConfigJSON != "" {
		if err := json.Unmarshal([]byte(userConfigJSON), &req.UserConfig); err != nil {
			return DownloadRequest{}, fmt.Errorf("decode user_config: %w", err)
		}
	}

	if itemConfigsJSON != "" {
		if err := json.Unmarshal([]byte(itemConfigsJSON), &req.ItemConfigs); err != nil {
			return DownloadRequest{}, fmt.Errorf("decode item_configs: %w", err)
		}
	}

	return req, nil
}

// targets converts SelectedURLs into models.Target, used when PlaylistMode
// and at least one selection is present (spec.md §4.3 "Input
// classification" step 1).
func (r DownloadRequest) targets() []models.Target {
	targets := make([]models.Target, len(r.SelectedURLs))
	for i, s := range r.SelectedURLs {
		targets[i] = s.toTarget()
	}
	return targets
}

// totalDuration sums whatever duration metadata the client supplied, used
// as the Quota Tracker's best-effort content-duration figure before
// resolution has run.
func (r DownloadRequest) totalDuration() time.Duration {
	var total time.Duration
	for _, s := range r.SelectedURLs {
		total += time.Duration(s.DurationSeconds) * time.Second
	}
	return total
}
