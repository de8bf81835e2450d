// Package log builds [slog.Handler]s for the supported log formats and
// carries loggers through contexts.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel/trace"

	charmlog "github.com/charmbracelet/log"
)

type (
	Format string
	Level  string

	contextKey struct{}
)

const (
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
	FormatText   Format = "text"

	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"

	// traceIDLength is the number of trace ID characters attached to logs.
	traceIDLength = 8
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnknownLogLevel  = errors.New("unknown log level")
	ErrUnknownLogFormat = errors.New("unknown log format")

	AllFormats = []string{string(FormatJSON), string(FormatLogfmt), string(FormatText)}
	AllLevels  = []string{string(LevelError), string(LevelWarn), string(LevelInfo), string(LevelDebug)}

	levels = map[Level]slog.Level{
		LevelError: slog.LevelError,
		LevelWarn:  slog.LevelWarn,
		"warning":  slog.LevelWarn,
		LevelInfo:  slog.LevelInfo,
		LevelDebug: slog.LevelDebug,
	}

	handlers = map[Format]func(io.Writer, slog.Level) slog.Handler{
		FormatJSON: func(w io.Writer, lvl slog.Level) slog.Handler {
			return slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: lvl})
		},
		FormatLogfmt: func(w io.Writer, lvl slog.Level) slog.Handler {
			return slog.NewTextHandler(w, &slog.HandlerOptions{AddSource: true, Level: lvl})
		},
		FormatText: newCharmLogHandler,
	}
)

// CreateHandlerWithStrings creates a [slog.Handler] from a level and format
// name, as given on the command line.
func CreateHandlerWithStrings(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	lvl, err := GetLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	f, err := GetFormat(logFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return CreateHandler(w, lvl, f), nil
}

// CreateHandler creates a [slog.Handler] writing to w. Unknown formats fall
// back to [FormatText].
func CreateHandler(w io.Writer, lvl slog.Level, f Format) slog.Handler {
	newHandler, ok := handlers[f]
	if !ok {
		newHandler = newCharmLogHandler
	}

	return newHandler(w, lvl)
}

// GetLevel parses a case-insensitive level name.
func GetLevel(level string) (slog.Level, error) {
	lvl, ok := levels[Level(strings.ToLower(level))]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownLogLevel, level)
	}

	return lvl, nil
}

// GetFormat parses a case-insensitive format name.
func GetFormat(format string) (Format, error) {
	f := Format(strings.ToLower(format))
	if _, ok := handlers[f]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownLogFormat, format)
	}

	return f, nil
}

func newCharmLogHandler(w io.Writer, level slog.Level) slog.Handler {
	logger := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(int32(level)), //nolint:gosec // G115: Levels are small.
		Formatter:       charmlog.TextFormatter,
		ReportTimestamp: true,
		ReportCaller:    true,
		TimeFormat:      time.StampMilli,
	})
	logger.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())

	return logger
}

// NewContext returns a copy of ctx carrying logger. [WithContext] returns
// it in preference to the default logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// WithContext returns the logger stored in ctx by [NewContext]. Otherwise it
// returns the default logger, tagged with a short trace ID when ctx carries
// a valid span.
func WithContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}

	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return slog.Default()
	}

	traceID := sc.TraceID().String()
	if len(traceID) > traceIDLength {
		traceID = traceID[:traceIDLength]
	}

	return slog.With(slog.String("trace_id", traceID))
}
