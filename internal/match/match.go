// Package match implements the fuzzy name matcher used to grade guesses.
package match

import "strings"

// minSubstringLen is the shortest guess allowed to win on a substring hit.
// Anything shorter must match a whole name part exactly, so a throwaway
// two-letter guess cannot land inside a longer name.
const minSubstringLen = 4

// Match reports whether a submitted guess identifies the reference name.
// Matching is case-insensitive on trimmed input: an exact full-name, first
// name, or last name match always wins, and a longer guess also wins if it
// is contained anywhere in the reference name.
func Match(guess, reference string) bool {
	g := strings.ToLower(strings.TrimSpace(guess))
	ref := strings.ToLower(strings.TrimSpace(reference))
	if g == "" || ref == "" {
		return false
	}
	if g == ref {
		return true
	}
	parts := strings.Fields(ref)
	if len(parts) > 0 {
		if g == parts[0] || g == parts[len(parts)-1] {
			return true
		}
	}
	return len(g) >= minSubstringLen && strings.Contains(ref, g)
}
