package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const catalogBaseURL = "https://api.spotify.com/v1"

// HTTPCatalogClient implements CatalogClient against the music-license-
// centric catalog's public API, authenticated via the OAuth2
// client-credentials grant (no user-facing browser flow, since the worker
// is headless -- see SPEC_FULL §4.3).
type HTTPCatalogClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPCatalogClient builds a client-credentials token source and wraps
// it in an *http.Client that attaches a bearer token to every request.
func NewHTTPCatalogClient(ctx context.Context, clientID, clientSecret, tokenURL string) *HTTPCatalogClient {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &HTTPCatalogClient{
		httpClient: cfg.Client(ctx),
		baseURL:    catalogBaseURL,
	}
}

type catalogTrackObj struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

func (t catalogTrackObj) toResult() SearchResult {
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return SearchResult{
		SourceRef: t.ID,
		Title:     t.Name,
		Artist:    artist,
		Duration:  time.Duration(t.DurationMS) * time.Millisecond,
	}
}

func (c *HTTPCatalogClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("catalog API returned status %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// TrackInfo fetches a single track's canonical name and primary artist.
func (c *HTTPCatalogClient) TrackInfo(ctx context.Context, trackID string) (SearchResult, error) {
	var track catalogTrackObj
	if err := c.get(ctx, "/tracks/"+url.PathEscape(trackID), &track); err != nil {
		return SearchResult{}, err
	}
	return track.toResult(), nil
}

// Search issues a free-text track search.
func (c *HTTPCatalogClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	var payload struct {
		Tracks struct {
			Items []catalogTrackObj `json:"items"`
		} `json:"tracks"`
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", strconv.Itoa(limit))

	if err := c.get(ctx, "/search?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(payload.Tracks.Items))
	for i, t := range payload.Tracks.Items {
		results[i] = t.toResult()
	}
	return results, nil
}

// AlbumPage fetches one page of an album's tracks.
func (c *HTTPCatalogClient) AlbumPage(ctx context.Context, albumID string, offset, limit int) ([]SearchResult, bool, error) {
	var payload struct {
		Items []catalogTrackObj `json:"items"`
		Next  *string           `json:"next"`
	}

	path := fmt.Sprintf("/albums/%s/tracks?offset=%d&limit=%d", url.PathEscape(albumID), offset, limit)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, false, err
	}

	results := make([]SearchResult, len(payload.Items))
	for i, t := range payload.Items {
		results[i] = t.toResult()
	}
	return results, payload.Next != nil, nil
}

// PlaylistPage fetches one page of a playlist's tracks.
func (c *HTTPCatalogClient) PlaylistPage(ctx context.Context, playlistID string, offset, limit int) ([]SearchResult, bool, error) {
	var payload struct {
		Items []struct {
			Track catalogTrackObj `json:"track"`
		} `json:"items"`
		Next *string `json:"next"`
	}

	path := fmt.Sprintf("/playlists/%s/tracks?offset=%d&limit=%d", url.PathEscape(playlistID), offset, limit)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, false, err
	}

	results := make([]SearchResult, len(payload.Items))
	for i, item := range payload.Items {
		results[i] = item.Track.toResult()
	}
	return results, payload.Next != nil, nil
}
