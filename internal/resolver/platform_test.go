package resolver

import (
	"testing"

	"github.com/fvitu/offliner/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		platform models.Platform
		playlist bool
		freeText bool
	}{
		{"catalog track", "https://open.spotify.com/track/abc123", models.PlatformCatalog, false, false},
		{"catalog album", "https://open.spotify.com/album/abc123", models.PlatformCatalog, true, false},
		{"catalog playlist intl", "https://open.spotify.com/intl-de/playlist/abc123", models.PlatformCatalog, true, false},
		{"general single", "https://youtube.com/watch?v=abc", models.PlatformGeneral, false, false},
		{"general short", "https://youtu.be/abc", models.PlatformGeneral, false, false},
		{"general playlist", "https://youtube.com/playlist?list=abc", models.PlatformGeneral, true, false},
		{"music single", "https://music.youtube.com/watch?v=abc", models.PlatformMusic, false, false},
		{"music playlist", "https://music.youtube.com/playlist?list=abc", models.PlatformMusic, true, false},
		{"free text", "never gonna give you up", models.PlatformUnknown, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.raw)
			if got.platform != tc.platform {
				t.Errorf("platform = %v, want %v", got.platform, tc.platform)
			}
			if got.playlist != tc.playlist {
				t.Errorf("playlist = %v, want %v", got.playlist, tc.playlist)
			}
			if got.freeText != tc.freeText {
				t.Errorf("freeText = %v, want %v", got.freeText, tc.freeText)
			}
		})
	}
}

func TestCatalogID(t *testing.T) {
	if got := catalogID("https://open.spotify.com/track/abc123?si=x"); got != "abc123" {
		t.Errorf("catalogID = %q, want abc123", got)
	}
	if got := catalogID("not a url"); got != "" {
		t.Errorf("catalogID = %q, want empty", got)
	}
}

func TestIsCatalogAlbum(t *testing.T) {
	if !isCatalogAlbum("https://open.spotify.com/album/abc123") {
		t.Error("expected album reference to be detected")
	}
	if isCatalogAlbum("https://open.spotify.com/playlist/abc123") {
		t.Error("expected playlist reference to not be an album")
	}
}
