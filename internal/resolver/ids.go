package resolver

import "regexp"

var (
	catalogTrackID    = regexp.MustCompile(`(?i)open\.spotify\.com/(?:intl-[a-z]{2}/)?track/([A-Za-z0-9]+)`)
	catalogAlbumID    = regexp.MustCompile(`(?i)open\.spotify\.com/(?:intl-[a-z]{2}/)?album/([A-Za-z0-9]+)`)
	catalogPlaylistID = regexp.MustCompile(`(?i)open\.spotify\.com/(?:intl-[a-z]{2}/)?playlist/([A-Za-z0-9]+)`)
)

// catalogID extracts the opaque identifier from a single-item or
// playlist/album reference on the music-license-centric catalog. Returns
// "" if raw doesn't match any of the recognized shapes.
func catalogID(raw string) string {
	if m := catalogTrackID.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := catalogAlbumID.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := catalogPlaylistID.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// isCatalogAlbum reports whether raw names an album reference as opposed to
// a playlist reference; both share the playlist/album classifier but the
// catalog client paginates them with different page sizes (§4.3).
func isCatalogAlbum(raw string) bool {
	return catalogAlbumID.MatchString(raw)
}
