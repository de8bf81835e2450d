// Package suggest proposes close matches for mistyped names.
package suggest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Closest returns the best fuzzy match for name among candidates, or an
// empty string if nothing matches. Matching is case-insensitive.
func Closest(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}

	sorted := slices.Clone(candidates)
	slices.Sort(sorted)

	lower := make([]string, len(sorted))
	for i, c := range sorted {
		lower[i] = strings.ToLower(c)
	}

	matches := fuzzy.Find(strings.ToLower(name), lower)
	if len(matches) == 0 {
		return ""
	}

	return sorted[matches[0].Index]
}

// DidYouMean formats a " (did you mean "x"?)" hint for name, or returns an
// empty string when there is no close match.
func DidYouMean(name string, candidates []string) string {
	match := Closest(name, candidates)
	if match == "" || match == name {
		return ""
	}

	return fmt.Sprintf(" (did you mean %q?)", match)
}
