package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/macropower/rulesim/api"
	"github.com/macropower/rulesim/api/v1beta1/configs"
	"github.com/macropower/rulesim/pkg/config"
	"github.com/macropower/rulesim/pkg/fact"
	"github.com/macropower/rulesim/pkg/project"
	"github.com/macropower/rulesim/pkg/simulate"
)

// ProjectArgs are the flags shared by commands that load a project.
type ProjectArgs struct {
	ConfigPath string
	Project    string
	Timeout    time.Duration
	SkipAST    bool
	Verbose    bool
}

func (pa *ProjectArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pa.ConfigPath, "config", "", "Path to the rulesim configuration file")
	cmd.Flags().StringVarP(&pa.Project, "project", "p", "", "Project directory, overrides the configured root")
	cmd.Flags().DurationVar(&pa.Timeout, "timeout", 0, "Bound fact resolution of each run, e.g. 5s")
	cmd.Flags().BoolVar(&pa.SkipAST, "skip-ast", false, "Skip parsing file structure in facts")
	cmd.Flags().BoolVarP(&pa.Verbose, "verbose", "v", false, "Report every condition instead of failing on condition errors")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	err = cmd.MarkFlagDirname("project")
	if err != nil {
		panic(fmt.Errorf("mark project flag: %w", err))
	}
}

// Options returns the simulation options selected by the flags.
func (pa *ProjectArgs) Options() simulate.Options {
	return simulate.Options{
		Timeout: pa.Timeout,
		Verbose: pa.Verbose,
		SkipAST: pa.SkipAST,
	}
}

// Workspace is a loaded configuration and a simulator for its project.
type Workspace struct {
	Config     *configs.Config
	Loader     *project.DirLoader
	Simulator  *simulate.Simulator
	ConfigPath string
}

// Open resolves and loads the configuration, and creates an uninitialized
// simulator for the selected project.
func (pa *ProjectArgs) Open(color bool) (*Workspace, error) {
	dir := pa.Project
	if dir == "" {
		dir = "."
	}

	cfgPath, err := api.ResolveConfigPath(pa.ConfigPath, dir)
	if err != nil {
		return nil, fmt.Errorf("find config: %w", err)
	}

	cfg := configs.New()

	var cfgDir string

	if cfgPath != "" {
		cfg, err = loadConfig(cfgPath, color)
		if err != nil {
			return nil, err
		}

		cfgDir = filepath.Dir(cfgPath)

		slog.Debug("loaded configuration", slog.String("path", cfgPath))
	}

	loader, err := cfg.ProjectLoader(pa.Project, cfgDir)
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", cfgPath, err)
	}

	sim := simulate.New(loader, simulate.WithRegistryLoader(func(context.Context) (*fact.Registry, error) {
		return cfg.Registry()
	}))

	return &Workspace{
		Config:     cfg,
		ConfigPath: cfgPath,
		Loader:     loader,
		Simulator:  sim,
	}, nil
}

// Initialize loads the project, logging progress at debug level.
func (ws *Workspace) Initialize(ctx context.Context) error {
	err := ws.Simulator.Initialize(ctx, "", func(p project.Progress) {
		slog.DebugContext(ctx, "loading project",
			slog.String("stage", string(p.Stage)),
			slog.Int("current", p.Current),
			slog.Int("total", p.Total),
		)
	})
	if err != nil {
		return fmt.Errorf("load project %q: %w", ws.Loader.Root(), err)
	}

	return nil
}

func loadConfig(path string, color bool) (*configs.Config, error) {
	cl, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator, config.WithColor(color))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	err = cl.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	cfg, err := cl.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	return cfg, nil
}
