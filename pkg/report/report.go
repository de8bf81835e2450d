// Package report renders simulation results for people and programs.
//
// Three formats are supported: [Text] for terminals, and [JSON] and [YAML]
// for tooling. Structured formats use the JSON field names of
// [simulate.Result], so both carry the same data.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/macropower/rulesim/pkg/simulate"
)

// Format is a report output format.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// Formats contains every supported [Format].
var Formats = []Format{Text, JSON, YAML}

// ErrUnknownFormat is returned for unsupported formats.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat returns the [Format] named s.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w %q, want one of %q", ErrUnknownFormat, s, Formats)
	}

	return f, nil
}

// Option configures rendering.
type Option func(*options)

type options struct {
	rule  string
	style string
	width int
	color bool
}

// WithColor enables ANSI colors.
func WithColor(color bool) Option {
	return func(o *options) {
		o.color = color
	}
}

// WithWidth sets the width text reports wrap to.
func WithWidth(width int) Option {
	return func(o *options) {
		o.width = width
	}
}

// WithRuleName sets the rule name shown in text reports.
func WithRuleName(name string) Option {
	return func(o *options) {
		o.rule = name
	}
}

// WithStyle sets the chroma style used to highlight structured reports.
func WithStyle(name string) Option {
	return func(o *options) {
		o.style = name
	}
}

// DefaultWidth is the text report width when none is set.
const DefaultWidth = 100

func newOptions(opts []Option) *options {
	o := &options{
		width: DefaultWidth,
		style: DefaultStyle,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.width = max(o.width, 40)

	return o
}

// Render writes a report for a single result.
func Render(w io.Writer, r *simulate.Result, f Format, opts ...Option) error {
	o := newOptions(opts)

	switch f {
	case Text:
		return newTextRenderer(w, o).result(r)
	case JSON, YAML:
		return renderStructured(w, r, f, o)
	}

	return fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// RenderBatch writes a report for a batch of results, ordered by file name.
func RenderBatch(w io.Writer, b simulate.Batch, f Format, opts ...Option) error {
	o := newOptions(opts)

	switch f {
	case Text:
		return newTextRenderer(w, o).batch(b)
	case JSON, YAML:
		if b == nil {
			b = simulate.Batch{}
		}

		return renderStructured(w, b, f, o)
	}

	return fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// Marshal encodes v in the structured format f.
func Marshal(v any, f Format) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}

	switch f {
	case JSON:
		return append(b, '\n'), nil
	case YAML:
		y, err := yaml.JSONToYAML(b)
		if err != nil {
			return nil, fmt.Errorf("convert to yaml: %w", err)
		}

		return y, nil
	}

	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

func renderStructured(w io.Writer, v any, f Format, o *options) error {
	b, err := Marshal(v, f)
	if err != nil {
		return err
	}

	if o.color {
		var buf bytes.Buffer

		err := highlight(&buf, string(b), f, o.style)
		if err == nil {
			b = buf.Bytes()
		}
	}

	_, err = w.Write(b)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
