package engine

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxStemLength is the cap applied to a sanitized title/uploader string,
// per spec.md §4.4 "Path convention".
const maxStemLength = 200

var (
	forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
	asciiFolder    = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// SanitizeComponent strips characters forbidden on common filesystems,
// trims trailing dots, collapses whitespace, NFKD-normalizes then
// ASCII-folds, and caps the result at maxStemLength runes. Idempotent:
// SanitizeComponent(SanitizeComponent(x)) == SanitizeComponent(x).
func SanitizeComponent(s string) string {
	s = forbiddenChars.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".")

	if folded, _, err := transform.String(asciiFolder, s); err == nil {
		s = folded
	}

	runesOut := []rune(s)
	if len(runesOut) > maxStemLength {
		runesOut = runesOut[:maxStemLength]
	}
	s = strings.TrimSpace(string(runesOut))
	s = strings.TrimRight(s, ".")
	return s
}

// Stem builds the sanitized "<title> - <uploader>" filename stem used in
// the output template (spec.md §4.4 "Path convention").
func Stem(title, uploader string) string {
	t := SanitizeComponent(title)
	u := SanitizeComponent(uploader)
	if u == "" {
		return t
	}
	return t + " - " + u
}
