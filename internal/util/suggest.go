package util

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Suggest returns the candidate closest to input by edit distance, or "" when
// none is close enough. Comparison ignores case.
func Suggest(input string, candidates []string) string {
	needle := strings.ToLower(input)
	if len(needle) < 3 {
		return ""
	}
	best := ""
	bestDist := -1
	for _, cand := range candidates {
		dist := levenshtein.ComputeDistance(needle, strings.ToLower(cand))
		if dist > suggestLimit(len(cand)) {
			continue
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && cand < best) {
			best = cand
			bestDist = dist
		}
	}
	return best
}

// DidYouMean formats a suggestion suffix for error messages.
func DidYouMean(input string, candidates []string) string {
	if s := Suggest(input, candidates); s != "" {
		return " (did you mean \"" + s + "\"?)"
	}
	return ""
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
