package engine

import (
	"fmt"

	"github.com/fvitu/offliner/internal/models"
)

// Mode selects which output the engine is producing for a given target.
type Mode string

const (
	ModeAudio Mode = "audio"
	ModeVideo Mode = "video"
)

// audioEmbedContainers and videoEmbedContainers are the final containers
// that support embedded cover art, per spec.md §4.4.
var (
	audioEmbedContainers = map[models.AudioFormat]bool{
		models.AudioMP3:  true,
		models.AudioFLAC: true,
		models.AudioM4A:  true,
	}
	// ogg/opus are recognized source containers without a models.AudioFormat
	// constant of their own; embedding support for them is handled by the
	// post-process chain directly rather than through this map.
	videoEmbedContainers = map[models.VideoFormat]bool{
		models.VideoMP4: true,
		models.VideoMKV: true,
		models.VideoMOV: true,
	}
)

// PostProcessor names one stage of the post-process chain, in the fixed
// order spec.md §4.4 requires: SponsorBlock removal must run before audio
// extraction (original_source/main.py: "el orden es importante").
type PostProcessor string

const (
	PPSponsorBlock     PostProcessor = "sponsor_block_remove"
	PPAudioExtract     PostProcessor = "audio_extract"
	PPMetadataTag      PostProcessor = "metadata_tag"
	PPThumbnailConvert PostProcessor = "thumbnail_convert"
	PPEmbedThumbnail   PostProcessor = "embed_thumbnail"
)

// RetryCounts are the fixed retry budgets spec.md §4.4 assigns to each
// failure class.
type RetryCounts struct {
	Extractor  int
	Fragment   int
	FileAccess int
}

// BaseRetryCounts is obtener_opciones_base_ytdlp()'s fixed retry budget.
var BaseRetryCounts = RetryCounts{Extractor: 10, Fragment: 10, FileAccess: 5}

// Options is the full options record the engine builds for one download.
type Options struct {
	Mode              Mode
	Selector          string
	OutputTemplate    string
	PostProcessors    []PostProcessor
	AudioFormat       models.AudioFormat
	AudioBitrateKbps  int
	VideoContainer    models.VideoFormat
	EmbedArt          bool
	SponsorSkip       bool
	SponsorCategories []string
	Retries           RetryCounts
	SocketTimeoutSec  int
	ChunkSizeBytes    int64
	UserAgent         string
	TLSVerify         bool
	ForceIPv4         bool
	ResumeEnabled     bool
	CredentialsPath   string
	ForceInternalClient bool
}

const (
	standardUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	socketTimeoutSec  = 60
	chunkSizeBytes    = 10 * 1024 * 1024
)

// audioSelectors and videoSelectors are the fixed, per-quality selector
// expressions named in spec.md §4.4. Selector strings at each quality level
// are fixed per-mode per-container.
var audioSelectors = map[models.Quality]string{
	models.QualityMin: "worstaudio/worst",
	models.QualityAvg: "bestaudio[abr<=160]/bestaudio",
	models.QualityMax: "bestaudio/best",
}

// videoSelectors is keyed by (quality, container); mp4 gets a
// muxing-compatible selector that avoids pairing Opus audio into an MP4
// container.
var videoSelectors = map[models.VideoFormat]map[models.Quality]string{
	models.VideoMP4: {
		models.QualityMin: "worst[ext=mp4]/worstvideo[ext=mp4]+bestaudio[ext=m4a]/worst",
		models.QualityAvg: "bestvideo[ext=mp4][height<=1080]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		models.QualityMax: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
	},
	models.VideoMOV: {
		models.QualityMin: "worst",
		models.QualityAvg: "bestvideo[height<=1080]+bestaudio/best",
		models.QualityMax: "bestvideo+bestaudio/best",
	},
	models.VideoMKV: {
		models.QualityMin: "worst",
		models.QualityAvg: "bestvideo[height<=1080]+bestaudio/best",
		models.QualityMax: "bestvideo+bestaudio/best",
	},
	models.VideoWebM: {
		models.QualityMin: "worst[ext=webm]/worst",
		models.QualityAvg: "bestvideo[ext=webm][height<=1080]+bestaudio[ext=webm]/best[ext=webm]/best",
		models.QualityMax: "bestvideo[ext=webm]+bestaudio[ext=webm]/best[ext=webm]/best",
	},
}

// effectiveFormats resolves the per-item override (if any) over the
// Request-wide UserConfig, per spec.md §9 "Per-item configuration
// overrides".
func effectiveFormats(cfg models.UserConfig, override *models.ItemOverride) (models.AudioFormat, models.VideoFormat) {
	audio, video := cfg.AudioFormat, cfg.VideoFormat
	if override != nil {
		if override.AudioFormat != "" {
			audio = override.AudioFormat
		}
		if override.VideoFormat != "" {
			video = override.VideoFormat
		}
	}
	return audio, video
}

// BuildOptions constructs the full Options record for one (target, mode)
// pair, per spec.md §4.4.
func BuildOptions(target models.Target, mode Mode, cfg models.UserConfig, sessionDir string, credentialsPath string) (Options, error) {
	audioFormat, videoFormat := effectiveFormats(cfg, target.FormatOverride)

	opts := Options{
		Mode:              mode,
		OutputTemplate:    sessionDir + "/" + Stem(target.Title, target.Uploader) + ".%(ext)s",
		SponsorSkip:       cfg.SponsorSkipEnabled,
		SponsorCategories: cfg.SponsorSkipCategories,
		Retries:           BaseRetryCounts,
		SocketTimeoutSec:  socketTimeoutSec,
		ChunkSizeBytes:    chunkSizeBytes,
		UserAgent:         standardUserAgent,
		TLSVerify:         false,
		ForceIPv4:         true,
		ResumeEnabled:     false,
		CredentialsPath:   credentialsPath,
		ForceInternalClient: true,
	}

	switch mode {
	case ModeAudio:
		selector, ok := audioSelectors[cfg.Quality]
		if !ok {
			return Options{}, fmt.Errorf("unrecognized audio quality %q", cfg.Quality)
		}
		opts.Selector = selector
		opts.AudioFormat = audioFormat
		opts.AudioBitrateKbps = bitrateFor(cfg.Quality)
		opts.EmbedArt = cfg.EmbedMetadata && audioEmbedContainers[audioFormat]
	case ModeVideo:
		byQuality, ok := videoSelectors[videoFormat]
		if !ok {
			return Options{}, fmt.Errorf("unsupported video container %q", videoFormat)
		}
		selector, ok := byQuality[cfg.Quality]
		if !ok {
			return Options{}, fmt.Errorf("unrecognized video quality %q", cfg.Quality)
		}
		opts.Selector = selector
		opts.VideoContainer = videoFormat
		opts.EmbedArt = cfg.EmbedMetadata && videoEmbedContainers[videoFormat]
	default:
		return Options{}, fmt.Errorf("unrecognized mode %q", mode)
	}

	opts.PostProcessors = buildPostProcessChain(opts, cfg)
	return opts, nil
}

// bitrateFor maps a quality tier to a target audio bitrate used by the
// extraction post-processor.
func bitrateFor(q models.Quality) int {
	switch q {
	case models.QualityMin:
		return 96
	case models.QualityMax:
		return 320
	default:
		return 192
	}
}

// buildPostProcessChain orders the post-process stages per spec.md §4.4:
// segment-removal, then audio extraction (audio mode only), then metadata
// tagging, then thumbnail conversion, then cover-art embedding only when
// the final container supports it.
func buildPostProcessChain(opts Options, cfg models.UserConfig) []PostProcessor {
	var chain []PostProcessor
	if opts.SponsorSkip {
		chain = append(chain, PPSponsorBlock)
	}
	if opts.Mode == ModeAudio {
		chain = append(chain, PPAudioExtract)
	}
	if cfg.EmbedMetadata {
		chain = append(chain, PPMetadataTag, PPThumbnailConvert)
		if opts.EmbedArt {
			chain = append(chain, PPEmbedThumbnail)
		}
	}
	return chain
}

// withoutSponsorBlock returns a copy of opts with the SponsorBlock stage
// removed, used by the known-failure fallback in spec.md §4.4.
func (o Options) withoutSponsorBlock() Options {
	out := o
	out.SponsorSkip = false
	filtered := make([]PostProcessor, 0, len(out.PostProcessors))
	for _, pp := range out.PostProcessors {
		if pp != PPSponsorBlock {
			filtered = append(filtered, pp)
		}
	}
	out.PostProcessors = filtered
	return out
}

// withoutForcedClient returns a copy of opts with the forced internal
// client extractor argument removed, used by the credentialed-probe
// fallback in spec.md §4.4.
func (o Options) withoutForcedClient() Options {
	out := o
	out.ForceInternalClient = false
	return out
}
