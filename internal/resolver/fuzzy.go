package resolver

import (
	"regexp"
	"strings"

	"github.com/sahilm/fuzzy"
)

var (
	bracketedTag = regexp.MustCompile(`[\(\[\{].*?[\)\]\}]`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9]+`)
)

// normalize lowercases s, strips bracketed/parenthesized tags, replaces
// non-alphanumerics with spaces, and collapses whitespace.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = bracketedTag.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// candidate is one search result considered as a match for a query.
type candidate struct {
	Title  string
	Artist string
}

// combined returns the normalized "title artist" string fuzzy matching is
// run against.
func (c candidate) combined() string {
	return normalize(c.Title + " " + c.Artist)
}

// bestMatch picks the candidate whose normalized "title artist" string best
// matches query's normalized "title artist" string, accepting only scores
// >= 0.5. Returns ok=false if no candidate clears the threshold.
func bestMatch(query candidate, candidates []candidate) (index int, score float64, ok bool) {
	target := query.combined()
	if target == "" || len(candidates) == 0 {
		return 0, 0, false
	}

	sources := make([]string, len(candidates))
	for i, c := range candidates {
		sources[i] = c.combined()
	}

	matches := fuzzy.Find(target, sources)

	bestIdx := -1
	var bestScore float64
	for _, m := range matches {
		s := rescale(m.Score, len([]rune(target)))
		if s < 0.5 {
			continue
		}
		if bestIdx == -1 || s > bestScore || (s == bestScore && m.Index < bestIdx) {
			bestIdx = m.Index
			bestScore = s
		}
	}

	if bestIdx == -1 {
		return 0, 0, false
	}
	return bestIdx, bestScore, true
}

// rescale maps sahilm/fuzzy's unbounded integer score into [0,1] by
// dividing by the query's rune length and clamping. fuzzy.Find's score
// rewards consecutive, in-order rune matches, so a perfect match's score
// saturates near queryLen.
func rescale(score, queryLen int) float64 {
	if queryLen == 0 {
		return 0
	}
	r := float64(score) / float64(queryLen)
	if r > 1 {
		r = 1
	}
	if r < 0 {
		r = 0
	}
	return r
}
