package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize/english"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/macropower/rulesim/pkg/engine"
	"github.com/macropower/rulesim/pkg/simulate"
)

const (
	markPass  = "✓"
	markFail  = "✗"
	markError = "!"
)

type textStyles struct {
	title     lipgloss.Style
	label     lipgloss.Style
	faint     lipgloss.Style
	triggered lipgloss.Style
	quiet     lipgloss.Style
	failed    lipgloss.Style
}

type textRenderer struct {
	w      io.Writer
	title  cases.Caser
	styles textStyles
	o      *options
	err    error
}

func newTextRenderer(w io.Writer, o *options) *textRenderer {
	r := lipgloss.NewRenderer(w)
	if !o.color {
		r.SetColorProfile(termenv.Ascii)
	} else if r.ColorProfile() == termenv.Ascii {
		r.SetColorProfile(termenv.ANSI256)
	}

	return &textRenderer{
		w:     w,
		o:     o,
		title: cases.Title(language.English),
		styles: textStyles{
			title:     r.NewStyle().Bold(true),
			label:     r.NewStyle().Foreground(lipgloss.Color("12")),
			faint:     r.NewStyle().Faint(true),
			triggered: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
			quiet:     r.NewStyle().Foreground(lipgloss.Color("8")),
			failed:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		},
	}
}

func (t *textRenderer) printf(format string, args ...any) {
	if t.err != nil {
		return
	}

	_, err := fmt.Fprintf(t.w, format, args...)
	if err != nil {
		t.err = fmt.Errorf("write report: %w", err)
	}
}

func (t *textRenderer) result(r *simulate.Result) error {
	t.writeResult(r)

	return t.err
}

func (t *textRenderer) batch(b simulate.Batch) error {
	for i, name := range b.Files() {
		if i > 0 {
			t.printf("\n")
		}

		t.writeResult(b[name])
	}

	parts := []string{}
	for _, fr := range []simulate.FinalResult{simulate.Triggered, simulate.NotTriggered, simulate.Error} {
		if n := b.Count(fr); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, fr))
		}
	}

	t.printf("\n%s", t.styles.title.Render(english.Plural(len(b), "file", "")))
	if len(parts) > 0 {
		t.printf(": %s", english.OxfordWordSeries(parts, "and"))
	}

	t.printf("\n")

	return t.err
}

func (t *textRenderer) writeResult(r *simulate.Result) {
	header := r.FileName
	if t.o.rule != "" {
		header = t.o.rule + " · " + header
	}

	t.printf("%s %s\n", t.outcome(r.FinalResult), t.styles.title.Render(header))
	t.printf("  %s %s\n", t.styles.label.Render("duration"), r.Duration)

	if r.Event != nil {
		line := t.title.String(string(r.Event.Type))
		if r.Event.Message != "" {
			line += ": " + r.Event.Message
		}

		t.printf("  %s %s\n", t.styles.label.Render("event   "), line)
	}

	if r.Error != "" {
		t.printf("  %s %s\n", t.styles.label.Render("error   "), t.wrap(r.Error, 11))
	}

	if len(r.ConditionResults) == 0 {
		return
	}

	t.printf("  %s\n", t.styles.label.Render("conditions"))

	for i := range r.ConditionResults {
		t.writeLeaf(&r.ConditionResults[i])
	}
}

func (t *textRenderer) writeLeaf(lr *engine.LeafResult) {
	mark := t.styles.triggered.Render(markPass)

	switch {
	case lr.Failed():
		mark = t.styles.failed.Render(markError)
	case !lr.Result:
		mark = t.styles.quiet.Render(markFail)
	}

	fact := lr.FactName
	if lr.JSONPath != "" {
		fact += " " + lr.JSONPath
	}

	t.printf("    %s %s  %s %s %s %s\n",
		mark,
		t.styles.faint.Render(lr.Path.Key()),
		fact,
		lr.Operator,
		t.value(lr.CompareValue, 6),
		t.styles.faint.Render(lr.Duration.String()),
	)

	if lr.Failed() {
		t.printf("        %s %s\n", t.styles.failed.Render("error:"), t.wrap(lr.Error, 15))
		return
	}

	t.printf("        %s %s\n", t.styles.faint.Render("fact:"), t.value(lr.FactValue, 14))
}

func (t *textRenderer) outcome(fr simulate.FinalResult) string {
	label := strings.ToUpper(string(fr))

	switch fr {
	case simulate.Triggered:
		return t.styles.triggered.Render(label)
	case simulate.Error:
		return t.styles.failed.Render(label)
	}

	return t.styles.quiet.Render(label)
}

// value formats v compactly, truncated to fit after an indent of pad.
func (t *textRenderer) value(v any, pad int) string {
	var s string

	b, err := json.Marshal(v)
	if err == nil {
		s = string(b)
	} else {
		s = fmt.Sprintf("%v", v)
	}

	return truncate.StringWithTail(s, uint(max(t.o.width-pad-30, 10)), "…") //nolint:gosec // G115: Bounded above.
}

// wrap word-wraps s so continuation lines line up after an indent of pad.
func (t *textRenderer) wrap(s string, pad int) string {
	wrapped := wordwrap.String(s, max(t.o.width-pad, 20))

	lines := strings.SplitN(wrapped, "\n", 2)
	if len(lines) == 1 {
		return wrapped
	}

	return lines[0] + "\n" + indent.String(lines[1], uint(pad)) //nolint:gosec // G115: Small constant.
}
