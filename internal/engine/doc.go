// Package engine implements the Download Engine: given one (Target, mode,
// effective UserConfig) tuple and a caller-supplied session directory, it
// builds an options record for the external media tool, installs progress
// and post-process hooks that write through the Progress Store, and yields
// the on-disk artifact -- retrying with a narrower options set on the
// specific, recognized failures named in spec.md §4.4.
//
// The engine never shells out to yt-dlp/ffmpeg directly; it speaks to them
// through the narrow [MediaTool] interface, satisfied in production by
// [ExecMediaTool] and by a fake in tests.
package engine

import "errors"

// errNoPlayableFormats is returned when the pre-flight probe finds nothing
// playable, even after the credentialed retry.
var errNoPlayableFormats = errors.New("no playable formats; credentials may be invalid")
