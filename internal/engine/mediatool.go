package engine

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ProbeResult is the outcome of extracting a target's info without
// downloading it (spec.md §4.4 "Pre-flight probe").
type ProbeResult struct {
	HasPlayableFormats bool
	Title              string
	Uploader           string
	Duration           time.Duration
}

// DownloadOutcome carries what the external tool reported once a download
// finishes, used by the engine's final path resolution (spec.md §4.4).
type DownloadOutcome struct {
	ReportedFilePath string
	ConvertedPath    string // set when audio post-processing converted the extension
}

// ProgressEvent is one transfer-hook callback from the external tool.
type ProgressEvent struct {
	DownloadedBytes int64
	TotalBytes      int64
	Speed           string
	ETA             string
	Filename        string
}

// PostProcessEvent is one post-process-hook callback from the external
// tool.
type PostProcessEvent struct {
	Name    PostProcessor
	Started bool
}

// MediaTool is the narrow interface the engine speaks through to the
// out-of-scope external program that performs the actual network I/O and
// codec work.
type MediaTool interface {
	Probe(ctx context.Context, url string, opts Options) (ProbeResult, error)
	Download(ctx context.Context, url string, opts Options, onProgress func(ProgressEvent) error, onPostProcess func(PostProcessEvent)) (DownloadOutcome, error)
}

// ExecMediaTool is the production MediaTool, invoking the external media
// tool binary as a subprocess (grounded on the self-test exec.Command
// pattern used against ffmpeg in the pack's rankrevo-Yt-api).
type ExecMediaTool struct {
	Binary string
}

// NewExecMediaTool returns an ExecMediaTool invoking binary (defaulting to
// "yt-dlp" when empty).
func NewExecMediaTool(binary string) *ExecMediaTool {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &ExecMediaTool{Binary: binary}
}

func (t *ExecMediaTool) args(url string, opts Options, probeOnly bool) []string {
	args := []string{
		"--newline", "--no-color",
		"--socket-timeout", strconv.Itoa(opts.SocketTimeoutSec),
		"--http-chunk-size", strconv.FormatInt(opts.ChunkSizeBytes, 10),
		"--extractor-retries", strconv.Itoa(opts.Retries.Extractor),
		"--fragment-retries", strconv.Itoa(opts.Retries.Fragment),
		"--file-access-retries", strconv.Itoa(opts.Retries.FileAccess),
		"--user-agent", opts.UserAgent,
		"--no-check-certificates",
		"--no-part",
		"--no-continue",
	}
	if opts.ForceIPv4 {
		args = append(args, "--force-ipv4")
	}
	if opts.CredentialsPath != "" {
		args = append(args, "--cookies", opts.CredentialsPath)
	}
	if opts.ForceInternalClient {
		args = append(args, "--extractor-args", "youtube:player_client=android")
	}
	if opts.Selector != "" {
		args = append(args, "-f", opts.Selector)
	}

	if probeOnly {
		args = append(args, "--dump-json", "--no-download")
		return append(args, url)
	}

	args = append(args, "-o", opts.OutputTemplate)
	for _, pp := range opts.PostProcessors {
		switch pp {
		case PPSponsorBlock:
			cats := strings.Join(opts.SponsorCategories, ",")
			if cats == "" {
				cats = "all"
			}
			args = append(args, "--sponsorblock-remove", cats)
		case PPAudioExtract:
			args = append(args, "--extract-audio", "--audio-format", string(opts.AudioFormat),
				"--audio-quality", fmt.Sprintf("%dK", opts.AudioBitrateKbps))
		case PPMetadataTag:
			args = append(args, "--embed-metadata", "--add-metadata")
		case PPThumbnailConvert:
			args = append(args, "--convert-thumbnails", "jpg")
		case PPEmbedThumbnail:
			args = append(args, "--embed-thumbnail")
		}
	}
	if opts.Mode == ModeVideo {
		args = append(args, "--merge-output-format", string(opts.VideoContainer))
	}

	return append(args, url)
}

var noFormatsPattern = regexp.MustCompile(`(?i)no (video )?formats found|requested format is not available`)

// Probe extracts info without downloading.
func (t *ExecMediaTool) Probe(ctx context.Context, url string, opts Options) (ProbeResult, error) {
	cmd := exec.CommandContext(ctx, t.Binary, t.args(url, opts, true)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if noFormatsPattern.Match(out) {
			return ProbeResult{HasPlayableFormats: false}, nil
		}
		return ProbeResult{}, fmt.Errorf("probe %s: %w: %s", url, err, truncate(string(out), 500))
	}
	return ProbeResult{HasPlayableFormats: true}, nil
}

var (
	progressLine   = regexp.MustCompile(`\[download\]\s+([\d.]+)% of\s+~?([\d.A-Za-z/]+)\s+at\s+([\d.A-Za-z/~]+)\s+ETA\s+([\d:]+)`)
	postProcessHit = regexp.MustCompile(`\[(Merger|ExtractAudio|Metadata|EmbedThumbnail|SponsorBlock|ThumbnailsConvertor)\]`)
)

// Download runs the configured download + post-process chain, translating
// stdout lines into progress/post-process hook callbacks.
func (t *ExecMediaTool) Download(ctx context.Context, url string, opts Options, onProgress func(ProgressEvent) error, onPostProcess func(PostProcessEvent)) (DownloadOutcome, error) {
	cmd := exec.CommandContext(ctx, t.Binary, t.args(url, opts, false)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return DownloadOutcome{}, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return DownloadOutcome{}, fmt.Errorf("start %s: %w", t.Binary, err)
	}

	var outcome DownloadOutcome
	var hookErr error

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := progressLine.FindStringSubmatch(line); m != nil && onProgress != nil {
			pct, _ := strconv.ParseFloat(m[1], 64)
			event := ProgressEvent{
				DownloadedBytes: int64(pct * 100),
				TotalBytes:      10000,
				Speed:           m[3],
				ETA:             m[4],
			}
			if err := onProgress(event); err != nil {
				hookErr = err
				_ = cmd.Process.Kill()
				break
			}
		}

		if m := postProcessHit.FindStringSubmatch(line); m != nil && onPostProcess != nil {
			onPostProcess(PostProcessEvent{Name: postProcessorFromTag(m[1]), Started: true})
		}

		if strings.Contains(line, "Destination:") {
			if parts := strings.SplitN(line, "Destination:", 2); len(parts) == 2 {
				outcome.ReportedFilePath = strings.TrimSpace(parts[1])
			}
		}
	}

	waitErr := cmd.Wait()
	if hookErr != nil {
		return outcome, hookErr
	}
	if waitErr != nil {
		return outcome, fmt.Errorf("download %s: %w", url, waitErr)
	}
	return outcome, nil
}

func postProcessorFromTag(tag string) PostProcessor {
	switch tag {
	case "SponsorBlock":
		return PPSponsorBlock
	case "ExtractAudio":
		return PPAudioExtract
	case "Metadata":
		return PPMetadataTag
	case "ThumbnailsConvertor":
		return PPThumbnailConvert
	case "EmbedThumbnail":
		return PPEmbedThumbnail
	default:
		return PostProcessor(tag)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
