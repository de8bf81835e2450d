package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"golang.org/x/term"
)

// ColorMode controls whether output is colorized.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

var (
	AllColorModes = []string{string(ColorAuto), string(ColorAlways), string(ColorNever)}

	ErrUnknownColorMode = errors.New("unknown color mode")
)

// ParseColorMode returns the [ColorMode] named s.
func ParseColorMode(s string) (ColorMode, error) {
	if !slices.Contains(AllColorModes, s) {
		return "", fmt.Errorf("%w %q, want one of %q", ErrUnknownColorMode, s, AllColorModes)
	}

	return ColorMode(s), nil
}

// Enabled reports whether output written to w should be colorized. In auto
// mode, only terminals get color, and NO_COLOR disables it.
func (m ColorMode) Enabled(w io.Writer) bool {
	switch m {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: File descriptors fit in int.
}

func (ra *RootArgs) colorEnabled(w io.Writer) bool {
	m, err := ParseColorMode(ra.Color)
	if err != nil {
		return false
	}

	return m.Enabled(w)
}
