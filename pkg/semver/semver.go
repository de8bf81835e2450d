// Package semver compares loosely formatted semantic versions, as commonly
// found in package manifests (e.g. "^18.2.0", "~1.4", "v2.0.0-rc.1").
package semver

import (
	"strings"

	"golang.org/x/mod/semver"
)

// rangePrefixes are stripped before parsing. Longer prefixes come first.
var rangePrefixes = []string{">=", "<=", "==", "^", "~", "=", ">", "<"}

// Canonical returns the canonical "vMAJOR.MINOR.PATCH[-PRERELEASE]" form of
// s, and false if s is not a version.
func Canonical(s string) (string, bool) {
	v := strings.TrimSpace(s)
	for _, p := range rangePrefixes {
		if strings.HasPrefix(v, p) {
			v = strings.TrimSpace(strings.TrimPrefix(v, p))
			break
		}
	}

	if v == "" {
		return "", false
	}
	if v[0] != 'v' {
		v = "v" + v
	}

	if !semver.IsValid(v) {
		return "", false
	}

	return semver.Canonical(v), true
}

// Compare returns -1, 0 or +1 depending on whether a < b, a == b, or a > b.
// The second return value is false if either input is not a version.
func Compare(a, b string) (int, bool) {
	ca, ok := Canonical(a)
	if !ok {
		return 0, false
	}

	cb, ok := Canonical(b)
	if !ok {
		return 0, false
	}

	return semver.Compare(ca, cb), true
}
