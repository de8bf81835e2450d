package report

import (
	"github.com/aymanbagabas/go-udiff"
)

// Diff returns a unified diff between two rendered reports, or an empty
// string if they are equal.
func Diff(previous, current string) string {
	return udiff.Unified("previous", "current", previous, current)
}
