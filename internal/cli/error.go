package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
)

var (
	// ErrSimulationFailed is returned when at least one simulation run ended
	// with an error result. The runs are still reported on stdout.
	ErrSimulationFailed = errors.New("simulation failed")

	// ErrUsage marks errors caused by invalid arguments or flags.
	ErrUsage = errors.New("invalid usage")

	// Prefixes of the usage errors cobra and pflag return without a type.
	// See: https://github.com/spf13/cobra/pull/2266
	usageErrorPrefixes = []string{
		"flag needs an argument:",
		"unknown flag:",
		"unknown shorthand flag:",
		"unknown command",
		"invalid argument",
		"accepts ",
		"requires at least",
		"if any flags in the group",
	}
)

// ErrorHandler prints err below fang's error header. Multi-line errors,
// such as joined validation errors, keep their line breaks and are indented
// as one block. Usage errors get a pointer to --help.
func ErrorHandler(w io.Writer, styles fang.Styles, err error) {
	body := lipgloss.NewStyle().MarginLeft(2)

	mustN(fmt.Fprintln(w, styles.ErrorHeader.String()))
	mustN(fmt.Fprintln(w, body.Render(strings.TrimRight(err.Error(), "\n"))))
	mustN(fmt.Fprintln(w))

	if !isUsageError(err) {
		return
	}

	mustN(fmt.Fprintln(w, lipgloss.JoinHorizontal(
		lipgloss.Left,
		styles.ErrorText.UnsetWidth().Render("Try"),
		styles.Program.Flag.Render("--help"),
		styles.ErrorText.UnsetWidth().UnsetMargins().UnsetTransform().PaddingLeft(1).Render("for usage."),
	)))
	mustN(fmt.Fprintln(w))
}

func isUsageError(err error) bool {
	if errors.Is(err, ErrUsage) {
		return true
	}

	msg := err.Error()
	for _, prefix := range usageErrorPrefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}

	return false
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func mustN(_ int, err error) {
	must(err)
}
