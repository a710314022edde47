package resolver

import (
	"regexp"

	"github.com/fvitu/offliner/internal/models"
)

// classifier pairs a platform tag with the predicates that recognize its
// single-item and playlist/album references. Order matters: classifiers are
// tried in registration order and the first match wins.
type classifier struct {
	platform         models.Platform
	singleItem       *regexp.Regexp
	playlistOrAlbum  *regexp.Regexp
}

// classifiers is the ordered set of recognized input shapes. Music is
// registered before General and both are host-anchored (not loose
// substring matches): "music.youtube.com/watch?v=..." contains the literal
// substring "youtube.com/watch?v=" but must never classify as General, so
// General's patterns anchor on a bare or "www."-prefixed host immediately
// following the start of the string or a scheme separator.
var classifiers = []classifier{
	{
		platform:        models.PlatformCatalog,
		singleItem:      regexp.MustCompile(`(?i)open\.spotify\.com/(intl-[a-z]{2}/)?track/`),
		playlistOrAlbum: regexp.MustCompile(`(?i)open\.spotify\.com/(intl-[a-z]{2}/)?(album|playlist)/`),
	},
	{
		platform:        models.PlatformMusic,
		singleItem:      regexp.MustCompile(`(?i)music\.youtube\.com/watch\?v=`),
		playlistOrAlbum: regexp.MustCompile(`(?i)music\.youtube\.com/playlist\?list=`),
	},
	{
		platform:        models.PlatformGeneral,
		singleItem:      regexp.MustCompile(`(?i)(^|//)(www\.)?youtube\.com/watch\?v=|(^|//)youtu\.be/`),
		playlistOrAlbum: regexp.MustCompile(`(?i)(^|//)(www\.)?youtube\.com/playlist\?list=`),
	},
}

// classification is the outcome of inspecting a raw input string.
type classification struct {
	platform  models.Platform
	playlist  bool
	freeText  bool
}

// classify inspects raw input and reports which platform's reference shape
// it matches, or falls through to free-text search.
func classify(raw string) classification {
	for _, c := range classifiers {
		if c.playlistOrAlbum.MatchString(raw) {
			return classification{platform: c.platform, playlist: true}
		}
		if c.singleItem.MatchString(raw) {
			return classification{platform: c.platform, playlist: false}
		}
	}
	return classification{platform: models.PlatformUnknown, freeText: true}
}
