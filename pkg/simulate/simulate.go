// Package simulate runs rules against project files.
//
// A [Simulator] loads the project data and the fact registry once, then
// evaluates rules against single files, in-memory content, every project file,
// or the project as a whole. Rule-level problems never surface as Go errors or
// panics: they are reported on the returned [Result].
package simulate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/macropower/rulesim/pkg/condition"
	"github.com/macropower/rulesim/pkg/engine"
	"github.com/macropower/rulesim/pkg/fact"
	"github.com/macropower/rulesim/pkg/log"
	"github.com/macropower/rulesim/pkg/project"
)

// GlobalTarget is the target name of project-wide runs.
const GlobalTarget = "GLOBAL"

var (
	// ErrNotInitialized is reported when running before [Simulator.Initialize].
	ErrNotInitialized = errors.New("simulator is not initialized")

	// ErrNoConditions is reported for rules without a condition tree.
	ErrNoConditions = errors.New("rule has no conditions")

	// ErrNoProject is reported when no project data is loaded.
	ErrNoProject = errors.New("no project data loaded")

	// ErrFileNotFound is reported when a target is not a project file.
	ErrFileNotFound = errors.New("file not found in project")

	// ErrConditionFailed is reported when a leaf fault fails a run.
	ErrConditionFailed = errors.New("condition failed")

	// ErrPanic wraps a panic recovered at the run boundary.
	ErrPanic = errors.New("simulation panicked")
)

// State is the initialization state of a [Simulator].
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
)

// RegistryLoader loads the fact registry.
type RegistryLoader func(ctx context.Context) (*fact.Registry, error)

// Simulator evaluates rules against loaded project data. It is safe for
// concurrent use once initialized.
type Simulator struct {
	loader       project.Loader
	loadRegistry RegistryLoader
	tracer       trace.Tracer
	registry     *fact.Registry
	data         *project.Data
	engine       *engine.Engine
	initGroup    singleflight.Group
	state        State
	generation   uint64
	concurrency  int
	mu           sync.RWMutex
}

// SimulatorOpt configures a [Simulator].
type SimulatorOpt func(*Simulator)

// WithRegistryLoader sets the function used to load the fact registry.
// The default loads [DefaultRegistry].
func WithRegistryLoader(fn RegistryLoader) SimulatorOpt {
	return func(s *Simulator) {
		s.loadRegistry = fn
	}
}

// WithTracer sets the tracer used for initialization and run spans.
func WithTracer(tracer trace.Tracer) SimulatorOpt {
	return func(s *Simulator) {
		s.tracer = tracer
	}
}

// WithConcurrency sets how many files [Simulator.SimulateAll] evaluates at
// once. Values below one mean one.
func WithConcurrency(n int) SimulatorOpt {
	return func(s *Simulator) {
		s.concurrency = max(n, 1)
	}
}

// New creates a new, uninitialized [Simulator] that loads project data with
// loader.
func New(loader project.Loader, opts ...SimulatorOpt) *Simulator {
	s := &Simulator{
		loader: loader,
		loadRegistry: func(_ context.Context) (*fact.Registry, error) {
			return DefaultRegistry()
		},
		tracer:      otel.Tracer("simulator"),
		state:       StateUninitialized,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State returns the current initialization state.
func (s *Simulator) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// IsInitialized reports whether the simulator is ready to run rules.
func (s *Simulator) IsInitialized() bool {
	return s.State() == StateReady
}

// Project returns the loaded project data, or nil before initialization.
// The data must not be modified.
func (s *Simulator) Project() *project.Data {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data
}

// Initialize loads the fact registry and the project data.
//
// Concurrent calls share a single in-flight initialization and all receive
// its outcome. Once the simulator is ready, Initialize returns immediately.
// A failed initialization leaves the simulator uninitialized.
func (s *Simulator) Initialize(ctx context.Context, projectName string, progress project.ProgressFunc) error {
	if s.IsInitialized() {
		return nil
	}

	_, err, shared := s.initGroup.Do("initialize", func() (any, error) {
		return nil, s.initialize(ctx, projectName, progress)
	})
	if shared {
		log.WithContext(ctx).DebugContext(ctx, "joined in-flight initialization")
	}

	return err //nolint:wrapcheck // Already wrapped.
}

func (s *Simulator) initialize(ctx context.Context, projectName string, progress project.ProgressFunc) error {
	s.mu.Lock()
	if s.state == StateReady {
		s.mu.Unlock()
		return nil
	}

	s.state = StateInitializing
	gen := s.generation
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "initialize", trace.WithAttributes(
		attribute.String("project", projectName),
	))
	defer span.End()

	logger := log.WithContext(ctx)
	start := time.Now()

	registry, data, err := s.load(ctx, projectName, progress)

	err = s.commit(gen, registry, data, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	progress.Report(project.Progress{Stage: project.StageDone, Current: len(data.Files), Total: len(data.Files)})

	logger.InfoContext(ctx, "simulator ready",
		slog.String("project", data.Name),
		slog.Int("files", len(data.Files)),
		slog.Int("facts", len(registry.FactNames())),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}

// commit stores the loaded state, unless loading failed or [Simulator.Reset]
// was called since generation gen started loading.
func (s *Simulator) commit(gen uint64, registry *fact.Registry, data *project.Data, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return errors.New("initialize: simulator was reset")
	}

	if err != nil {
		s.state = StateUninitialized
		return err
	}

	s.registry = registry
	s.data = data
	s.engine = engine.New(registry)
	s.state = StateReady

	return nil
}

func (s *Simulator) load(ctx context.Context, projectName string, progress project.ProgressFunc) (*fact.Registry, *project.Data, error) {
	if s.loader == nil {
		return nil, nil, fmt.Errorf("initialize: %w", ErrNoProject)
	}

	progress.Report(project.Progress{Stage: project.StageRegistry})

	registry, err := s.loadRegistry(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load registry: %w", err)
	}

	data, err := s.loader.Load(ctx, projectName, progress)
	if err != nil {
		return nil, nil, fmt.Errorf("load project: %w", err)
	}
	if data == nil {
		return nil, nil, fmt.Errorf("load project: %w", ErrNoProject)
	}

	return registry, data, nil
}

// Reset discards the registry and project data. The simulator must be
// initialized again before running rules.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry = nil
	s.data = nil
	s.engine = nil
	s.state = StateUninitialized
	s.generation++
}

// snapshot is the shared, read-only state used by one run.
type snapshot struct {
	registry *fact.Registry
	data     *project.Data
	engine   *engine.Engine
}

func (s *Simulator) snapshot() (snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady {
		return snapshot{}, ErrNotInitialized
	}
	if s.data == nil {
		return snapshot{}, ErrNoProject
	}

	return snapshot{registry: s.registry, data: s.data, engine: s.engine}, nil
}

// Simulate runs rule against the project file called target.
func (s *Simulator) Simulate(ctx context.Context, rule *condition.Rule, target string, opts Options) *Result {
	snap, err := s.snapshot()
	if err != nil {
		return failed(target, err)
	}

	content, ok := snap.data.File(target)
	if !ok {
		return failed(target, fmt.Errorf("%w: %s", ErrFileNotFound, target))
	}

	return s.run(ctx, snap, rule, s.target(snap.data, target, content), snap.data, opts)
}

// SimulateWithContent runs rule against in-memory content named name. The
// content does not need to exist in the project.
func (s *Simulator) SimulateWithContent(ctx context.Context, rule *condition.Rule, name, content string, opts Options) *Result {
	snap, err := s.snapshot()
	if err != nil {
		return failed(name, err)
	}

	return s.run(ctx, snap, rule, s.target(snap.data, name, content), snap.data, opts)
}

// SimulateAll runs rule against every project file. Runs are independent;
// a failed run is reported in its own [Result]. The returned error is
// non-nil only when no run could start.
func (s *Simulator) SimulateAll(ctx context.Context, rule *condition.Rule, opts Options) (Batch, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "simulate-all", trace.WithAttributes(
		attribute.String("rule", ruleName(rule)),
		attribute.Int("files", len(snap.data.Files)),
	))
	defer span.End()

	var (
		mu    sync.Mutex
		batch = make(Batch, len(snap.data.Files))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, name := range snap.data.FileNames() {
		content := snap.data.Files[name]

		g.Go(func() error {
			res := s.run(gctx, snap, rule, s.target(snap.data, name, content), snap.data, opts)

			mu.Lock()
			defer mu.Unlock()

			batch[name] = res

			return nil
		})
	}

	_ = g.Wait() // Runs never return errors.

	span.SetAttributes(attribute.Int("triggered", batch.Count(Triggered)))

	return batch, nil
}

// SimulateGlobal runs rule once against the whole project, under the
// [GlobalTarget] name. Files in extra overlay the loaded project files for
// this run only.
func (s *Simulator) SimulateGlobal(ctx context.Context, rule *condition.Rule, extra map[string]string, opts Options) *Result {
	snap, err := s.snapshot()
	if err != nil {
		return failed(GlobalTarget, err)
	}

	data := snap.data
	if len(extra) > 0 {
		data = data.WithFiles(extra)
	}

	target := fact.Target{Name: GlobalTarget, Path: data.Root}

	return s.run(ctx, snap, rule, target, data, opts)
}

func (s *Simulator) target(data *project.Data, name, content string) fact.Target {
	p := name
	if data.Root != "" && !filepath.IsAbs(name) {
		p = filepath.Join(data.Root, filepath.FromSlash(name))
	}

	return fact.Target{Name: name, Path: p, Content: content}
}

func (s *Simulator) run(
	ctx context.Context,
	snap snapshot,
	rule *condition.Rule,
	target fact.Target,
	data *project.Data,
	opts Options,
) (res *Result) {
	start := time.Now()
	res = &Result{FileName: target.Name, Timestamp: start}

	ctx, span := s.tracer.Start(ctx, "simulate", trace.WithAttributes(
		attribute.String("rule", ruleName(rule)),
		attribute.String("target", target.Name),
	))
	defer span.End()

	logger := log.WithContext(ctx).With(
		slog.String("rule", ruleName(rule)),
		slog.String("target", target.Name),
	)

	defer func() {
		if r := recover(); r != nil {
			res.fail(fmt.Errorf("%w: %v", ErrPanic, r))
		}

		res.Duration = time.Since(start)

		span.SetAttributes(attribute.String("result", string(res.FinalResult)))
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Error)
		}

		logger.DebugContext(ctx, "simulated rule",
			slog.String("result", string(res.FinalResult)),
			slog.Int("conditions", len(res.ConditionResults)),
			slog.Duration("duration", res.Duration),
		)
	}()

	if rule.Root() == nil {
		res.fail(ErrNoConditions)
		return res
	}

	evalCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc

		evalCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	almanac := fact.NewAlmanac(snap.registry, target, data, fact.WithSkipAST(opts.SkipAST))
	ev := snap.engine.Evaluate(evalCtx, almanac, rule.Root())

	res.ConditionResults = ev.Results
	if res.ConditionResults == nil {
		res.ConditionResults = []engine.LeafResult{}
	}

	if !opts.Verbose {
		for _, lr := range ev.Results {
			if lr.Failed() && !lr.Unknown() {
				res.fail(fmt.Errorf("%w at %s: %w", ErrConditionFailed, lr.Path.Key(), lr.Err))
				return res
			}
		}
	}

	res.Success = true
	res.FinalResult = NotTriggered

	if ev.Met {
		res.FinalResult = Triggered

		event := rule.Event
		event.Params = maps.Clone(rule.Event.Params)
		res.Event = &event
	}

	return res
}

func failed(target string, err error) *Result {
	res := &Result{
		FileName:         target,
		Timestamp:        time.Now(),
		ConditionResults: []engine.LeafResult{},
	}
	res.fail(err)

	return res
}

func ruleName(rule *condition.Rule) string {
	if rule == nil {
		return ""
	}

	return rule.Name
}
