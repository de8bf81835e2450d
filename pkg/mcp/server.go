package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulesim/api/v1beta1/rules"
	"github.com/macropower/rulesim/pkg/condition"
	"github.com/macropower/rulesim/pkg/config"
	"github.com/macropower/rulesim/pkg/project"
	"github.com/macropower/rulesim/pkg/simulate"
	"github.com/macropower/rulesim/pkg/version"
)

var (
	// ErrNoRule is returned when a rule argument holds no rule document.
	ErrNoRule = errors.New("no rule given")

	// ErrMultipleRules is returned when a rule argument holds more than one
	// rule document.
	ErrMultipleRules = errors.New("expected a single rule")
)

// Simulator runs rules against a loaded project.
type Simulator interface {
	Initialize(ctx context.Context, projectName string, progress project.ProgressFunc) error
	Project() *project.Data
	Simulate(ctx context.Context, rule *condition.Rule, target string, opts simulate.Options) *simulate.Result
	SimulateWithContent(ctx context.Context, rule *condition.Rule, name, content string, opts simulate.Options) *simulate.Result
	SimulateAll(ctx context.Context, rule *condition.Rule, opts simulate.Options) (simulate.Batch, error)
	SimulateGlobal(ctx context.Context, rule *condition.Rule, extra map[string]string, opts simulate.Options) *simulate.Result
}

var _ Simulator = (*simulate.Simulator)(nil)

// ServerOpt configures a [Server].
type ServerOpt func(*Server)

// WithTracer sets the tracer used for tool call spans.
func WithTracer(tracer trace.Tracer) ServerOpt {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithProjectName sets the project name passed to the simulator on
// initialization.
func WithProjectName(name string) ServerOpt {
	return func(s *Server) {
		s.projectName = name
	}
}

// WithRunOptions sets the base options of every simulation. The verbose
// flag of each tool call overrides Verbose.
func WithRunOptions(opts simulate.Options) ServerOpt {
	return func(s *Server) {
		s.runOpts = opts
	}
}

// Server implements the MCP server for rulesim.
type Server struct {
	sim         Simulator
	server      *mcp.Server
	tracer      trace.Tracer
	address     string
	projectName string
	runOpts     simulate.Options
}

// NewServer creates a new MCP server instance. An empty address serves over
// stdio; any other address serves streamable HTTP.
func NewServer(address string, sim Simulator, opts ...ServerOpt) (*Server, error) {
	if sim == nil {
		return nil, errors.New("simulator is required")
	}

	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	s := &Server{
		address: address,
		server:  mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		sim:     sim,
		tracer:  otel.Tracer("rulesim/mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_files",
		Description: "List the files of the loaded project. Use the returned names EXACTLY as the file argument of simulate_rule.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Optional fuzzy filter for file names.",
				},
			},
		},
	}, WithTracing(s.tracer, s.handleListFiles))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "simulate_rule",
		Description: "Evaluate a rule against one project file, or against the given content under the given file name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"rule": ruleSchema(),
				"file": {
					Type:        "string",
					Description: "The file name, relative to the project root, as returned by list_files.",
				},
				"content": {
					Type:        "string",
					Description: "Optional file content. When set, the file does not need to exist in the project.",
				},
				"verbose": verboseSchema(),
			},
			Required: []string{"rule", "file"},
		},
	}, WithTracing(s.tracer, s.handleSimulateRule))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "simulate_all",
		Description: "Evaluate a rule against every project file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"rule":    ruleSchema(),
				"verbose": verboseSchema(),
			},
			Required: []string{"rule"},
		},
	}, WithTracing(s.tracer, s.handleSimulateAll))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "simulate_global",
		Description: "Evaluate a rule once against the whole project, optionally with extra files laid over the project files.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"rule": ruleSchema(),
				"extraFiles": {
					Type:        "object",
					Description: "Optional map of file names to contents, added to the project for this run only.",
					AdditionalProperties: &jsonschema.Schema{
						Type: "string",
					},
				},
				"verbose": verboseSchema(),
			},
			Required: []string{"rule"},
		},
	}, WithTracing(s.tracer, s.handleSimulateGlobal))
}

// ready initializes the simulator if it is not already initialized.
func (s *Server) ready(ctx context.Context) error {
	err := s.sim.Initialize(ctx, s.projectName, func(p project.Progress) {
		slog.DebugContext(ctx, "loading project", slog.Any("progress", p))
	})
	if err != nil {
		return fmt.Errorf("initialize simulator: %w", err)
	}

	return nil
}

func (s *Server) options(verbose bool) simulate.Options {
	opts := s.runOpts
	opts.Verbose = verbose

	return opts
}

// parseRule decodes a single rule document. Malformed condition nodes are
// kept so that they are reported as skipped.
func parseRule(src string) (*condition.Rule, error) {
	rs, err := rules.Parse([]byte(src))
	if errors.Is(err, config.ErrEmptyDocument) {
		return nil, ErrNoRule
	}
	if err != nil {
		return nil, fmt.Errorf("parse rule: %w", err)
	}
	if len(rs) > 1 {
		return nil, fmt.Errorf("%w, got %d", ErrMultipleRules, len(rs))
	}

	return &rs[0].Rule, nil
}

func (s *Server) Server() *mcp.Server {
	return s.server
}

// Serve starts the MCP server and blocks until ctx is canceled or the
// transport fails.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server", slog.String("address", s.address))

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	server := &http.Server{
		Addr:    s.address,
		Handler: handler,

		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			slog.ErrorContext(ctx, "shutdown MCP server", slog.Any("error", err))
		}
	}()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := mcp.NewLoggingTransport(mcp.NewStdioTransport(), os.Stderr)

	err := s.server.Run(ctx, t)
	if err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
