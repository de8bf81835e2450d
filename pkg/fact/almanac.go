package fact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/macropower/rulesim/pkg/log"
	"github.com/macropower/rulesim/pkg/project"
	"github.com/macropower/rulesim/pkg/suggest"
)

var (
	// ErrUnknownFact is returned when a fact name is not registered.
	//
	//nolint:staticcheck // ST1005: The message is part of the result contract.
	ErrUnknownFact = errors.New("Unknown fact")

	// ErrPanic wraps a panic raised by a fact definition.
	ErrPanic = errors.New("fact panicked")
)

// Target is the file an evaluation is bound to.
type Target struct {
	// Name identifies the target, e.g. "src/App.tsx".
	Name string
	// Path is the target's location, e.g. an absolute path on disk.
	Path string
	// Content is the raw content of the target.
	Content string
}

// Descriptor returns the value of the [FileData] fact for t.
func (t Target) Descriptor() map[string]any {
	return map[string]any{
		"fileName":    t.Name,
		"filePath":    t.Path,
		"fileContent": t.Content,
	}
}

// Resolution is the outcome of resolving one fact.
type Resolution struct {
	// Value is the resolved value. It is nil when OK is false.
	Value any
	// Err describes why resolution failed.
	Err error
	// Duration is the time spent calculating the value. Cached values
	// report zero.
	Duration time.Duration
	// OK reports whether Value is valid.
	OK bool
	// Cached reports whether Value came from the almanac's cache.
	Cached bool
}

// Almanac is the per-run evaluation context. It binds the current target and
// the project data, and caches fact values by name.
//
// An Almanac must not be shared between runs or used concurrently.
type Almanac struct {
	registry *Registry
	project  *project.Data
	cache    map[string]any
	target   Target
	skipAST  bool
}

// AlmanacOpt configures an [Almanac].
type AlmanacOpt func(*Almanac)

// WithSkipAST tells facts that parse file structure to skip parsing.
func WithSkipAST(skip bool) AlmanacOpt {
	return func(a *Almanac) {
		a.skipAST = skip
	}
}

// NewAlmanac creates an [Almanac] with an empty cache.
func NewAlmanac(registry *Registry, target Target, data *project.Data, opts ...AlmanacOpt) *Almanac {
	a := &Almanac{
		registry: registry,
		project:  data,
		target:   target,
		cache:    map[string]any{},
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Target returns the target the almanac is bound to.
func (a *Almanac) Target() Target {
	return a.target
}

// Project returns the project data. It must not be modified.
func (a *Almanac) Project() *project.Data {
	return a.project
}

// SkipAST reports whether facts should avoid parsing file structure.
func (a *Almanac) SkipAST() bool {
	return a.skipAST
}

// Resolve resolves the fact called name.
//
// A value already cached under name is returned immediately. The reserved
// [FileData] fact resolves to the target's descriptor. Any other name is
// looked up in the registry and calculated; successful values are cached
// for the rest of the run, so a fact is calculated at most once per
// almanac. The cache is keyed by name only, so params do not distinguish
// cached values.
//
// Resolve never panics: errors and panics raised by the definition are
// returned in [Resolution.Err].
func (a *Almanac) Resolve(ctx context.Context, name string, params map[string]any) Resolution {
	if v, ok := a.cache[name]; ok {
		return Resolution{Value: v, OK: true, Cached: true}
	}

	if name == FileData {
		return Resolution{Value: a.target.Descriptor(), OK: true}
	}

	def, ok := a.registry.Fact(name)
	if !ok {
		return Resolution{
			Err: fmt.Errorf("%w: %s%s", ErrUnknownFact, name, suggest.DidYouMean(name, a.registry.FactNames())),
		}
	}

	start := time.Now()
	v, err := calculate(ctx, def, params, a)
	elapsed := time.Since(start)

	if err != nil {
		log.WithContext(ctx).DebugContext(ctx, "fact failed",
			slog.String("fact", name),
			slog.Any("error", err),
		)

		return Resolution{Err: fmt.Errorf("fact %s: %w", name, err), Duration: elapsed}
	}

	a.cache[name] = v

	log.WithContext(ctx).DebugContext(ctx, "resolved fact",
		slog.String("fact", name),
		slog.Duration("duration", elapsed),
	)

	return Resolution{Value: v, OK: true, Duration: elapsed}
}

// Value resolves the fact called name and returns its value. It is meant
// for definitions that build on other facts.
func (a *Almanac) Value(ctx context.Context, name string, params map[string]any) (any, error) {
	res := a.Resolve(ctx, name, params)
	if !res.OK {
		return nil, res.Err
	}

	return res.Value, nil
}

func calculate(ctx context.Context, def Definition, params map[string]any, a *Almanac) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return def.Calculate(ctx, params, a) //nolint:wrapcheck // Wrapped by the caller.
}
