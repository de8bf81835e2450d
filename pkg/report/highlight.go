package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
)

// DefaultStyle is the chroma style used when none is set.
const DefaultStyle = "onedark"

// formatterName picks the chroma formatter for the terminal's color profile.
func formatterName(p termenv.Profile) string {
	switch p {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	case termenv.ANSI:
		return "terminal8"
	}

	return "noop"
}

func highlight(w io.Writer, source string, f Format, style string) error {
	lexer := lexers.Get(strings.ToUpper(string(f)))
	if lexer == nil {
		lexer = lexers.Fallback
	}

	lexer = chroma.Coalesce(lexer)

	formatter := formatters.Get(formatterName(termenv.ColorProfile()))

	s := styles.Get(style)
	if s == nil {
		s = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return fmt.Errorf("lexer tokenize: %w", err)
	}

	err = formatter.Format(w, s, iterator)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	return nil
}
