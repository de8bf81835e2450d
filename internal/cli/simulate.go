package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/macropower/rulesim/api/v1beta1/rules"
	"github.com/macropower/rulesim/pkg/report"
	"github.com/macropower/rulesim/pkg/simulate"
	"github.com/macropower/rulesim/pkg/suggest"
)

const (
	cmdExamples = `  # Simulate a rule against one project file:
  rulesim simulate rules/no-console.yaml src/App.tsx

  # Simulate against every file, as JSON:
  rulesim simulate rules/no-console.yaml --all -o json

  # Simulate a project-wide rule with an extra file:
  rulesim simulate rules/lockfile.yaml --global --overlay yarn.lock=./yarn.lock

  # Simulate unsaved content read from stdin:
  cat App.tsx | rulesim simulate rules/no-console.yaml src/App.tsx --content -

  # Re-run whenever the rule or the project changes:
  rulesim simulate rules/no-console.yaml src/App.tsx --watch`
)

// ErrRuleNotFound is returned when --name matches no rule in the rule file.
var ErrRuleNotFound = errors.New("rule not found")

type SimulateArgs struct {
	*RootArgs
	ProjectArgs

	Overlays    map[string]string
	RulePath    string
	File        string
	ContentPath string
	RuleName    string
	Output      string
	All         bool
	Global      bool
	Watch       bool
}

func NewSimulateArgs(rootArgs *RootArgs) *SimulateArgs {
	return &SimulateArgs{
		RootArgs: rootArgs,
	}
}

func (sa *SimulateArgs) AddFlags(cmd *cobra.Command) {
	sa.ProjectArgs.AddFlags(cmd)

	cmd.Flags().BoolVarP(&sa.All, "all", "a", false, "Simulate against every project file")
	cmd.Flags().BoolVarP(&sa.Global, "global", "g", false, "Simulate once against the whole project")
	cmd.Flags().StringVar(&sa.ContentPath, "content", "", "Read the target content from a path instead of the project, - for stdin")
	cmd.Flags().StringVarP(&sa.RuleName, "name", "n", "", "Name of the rule to simulate, when the rule file holds several")
	cmd.Flags().StringToStringVar(&sa.Overlays, "overlay", nil, "Add a file to the project for --global runs, as NAME=PATH")
	cmd.Flags().StringVarP(&sa.Output, "output", "o", string(report.Text), fmt.Sprintf("Output format, one of: %s", report.Formats))
	cmd.Flags().BoolVarP(&sa.Watch, "watch", "w", false, "Watch the rule and the project, and re-run on changes")

	cmd.MarkFlagsMutuallyExclusive("all", "global")
	cmd.MarkFlagsMutuallyExclusive("content", "all")
	cmd.MarkFlagsMutuallyExclusive("content", "global")

	formats := make([]string, 0, len(report.Formats))
	for _, f := range report.Formats {
		formats = append(formats, string(f))
	}

	err := cmd.RegisterFlagCompletionFunc("output",
		cobra.FixedCompletions(formats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}
}

func NewSimulateCmd(rootArgs *RootArgs) *cobra.Command {
	sa := NewSimulateArgs(rootArgs)

	cmd := &cobra.Command{
		Use:     "simulate RULE [FILE]",
		Aliases: []string{"sim"},
		Short:   "Evaluate a rule against a file, every file, or the whole project",
		Example: cmdExamples,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sa.RulePath = args[0]
			if len(args) > 1 {
				sa.File = args[1]
			}

			err := sa.check()
			if err != nil {
				return err
			}

			return sa.run(cmd)
		},
	}
	sa.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

// check reports flag combinations that cobra cannot express.
func (sa *SimulateArgs) check() error {
	switch {
	case (sa.All || sa.Global) && sa.File != "":
		return fmt.Errorf("%w: FILE cannot be combined with --all or --global", ErrUsage)
	case !sa.All && !sa.Global && sa.File == "" && sa.ContentPath == "":
		return fmt.Errorf("%w: FILE is required unless --all, --global, or --content is set", ErrUsage)
	case len(sa.Overlays) > 0 && !sa.Global:
		return fmt.Errorf("%w: --overlay requires --global", ErrUsage)
	case sa.Watch && sa.ContentPath == "-":
		return fmt.Errorf("%w: --watch cannot read content from stdin", ErrUsage)
	}

	_, err := report.ParseFormat(sa.Output)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	return nil
}

func (sa *SimulateArgs) run(cmd *cobra.Command) error {
	format, err := report.ParseFormat(sa.Output)
	if err != nil {
		return err //nolint:wrapcheck // Already checked.
	}

	color := sa.colorEnabled(cmd.OutOrStdout())

	ws, err := sa.Open(color)
	if err != nil {
		return err
	}

	if sa.Watch {
		return sa.watch(cmd, ws, format)
	}

	out, failed, err := sa.simulate(cmd.Context(), cmd.InOrStdin(), ws, format, color)
	if err != nil {
		return err
	}

	_, err = io.WriteString(cmd.OutOrStdout(), out)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %s ended with an error", ErrSimulationFailed, english.Plural(failed, "run", ""))
	}

	return nil
}

// simulate loads the rule, runs it, and returns the rendered report and the
// number of runs that ended with an error.
func (sa *SimulateArgs) simulate(
	ctx context.Context,
	stdin io.Reader,
	ws *Workspace,
	format report.Format,
	color bool,
) (string, int, error) {
	rule, err := sa.loadRule(color)
	if err != nil {
		return "", 0, err
	}

	err = ws.Initialize(ctx)
	if err != nil {
		return "", 0, err
	}

	var (
		buf  bytes.Buffer
		opts = []report.Option{
			report.WithColor(color),
			report.WithRuleName(rule.Name),
		}
	)

	switch {
	case sa.All:
		batch, err := ws.Simulator.SimulateAll(ctx, &rule.Rule, sa.Options())
		if err != nil {
			return "", 0, fmt.Errorf("simulate all files: %w", err)
		}

		err = report.RenderBatch(&buf, batch, format, opts...)
		if err != nil {
			return "", 0, fmt.Errorf("render report: %w", err)
		}

		return buf.String(), batch.Count(simulate.Error), nil

	case sa.Global:
		overlay, err := readOverlays(sa.Overlays)
		if err != nil {
			return "", 0, err
		}

		res := ws.Simulator.SimulateGlobal(ctx, &rule.Rule, overlay, sa.Options())

		return sa.render(&buf, res, format, opts)
	}

	var res *simulate.Result

	if sa.ContentPath != "" {
		content, err := readContent(stdin, sa.ContentPath)
		if err != nil {
			return "", 0, err
		}

		name := sa.File
		if name == "" {
			name = filepath.ToSlash(sa.ContentPath)
		}

		res = ws.Simulator.SimulateWithContent(ctx, &rule.Rule, name, content, sa.Options())
	} else {
		res = ws.Simulator.Simulate(ctx, &rule.Rule, ws.targetName(sa.File), sa.Options())
	}

	return sa.render(&buf, res, format, opts)
}

func (sa *SimulateArgs) render(buf *bytes.Buffer, res *simulate.Result, format report.Format, opts []report.Option) (string, int, error) {
	err := report.Render(buf, res, format, opts...)
	if err != nil {
		return "", 0, fmt.Errorf("render report: %w", err)
	}

	failed := 0
	if res.FinalResult == simulate.Error {
		failed = 1
	}

	return buf.String(), failed, nil
}

func (sa *SimulateArgs) loadRule(color bool) (*rules.Rule, error) {
	rs, err := rules.Load(sa.RulePath, rules.WithColor(color))
	if err != nil {
		return nil, fmt.Errorf("load rule: %w", err)
	}

	return selectRule(rs, sa.RuleName)
}

// selectRule returns the rule called name, or the only rule when name is
// empty.
func selectRule(rs []*rules.Rule, name string) (*rules.Rule, error) {
	names := make([]string, 0, len(rs))
	for _, r := range rs {
		if name != "" && r.Name == name {
			return r, nil
		}

		names = append(names, r.Name)
	}

	if name != "" {
		return nil, fmt.Errorf("%w: %q%s", ErrRuleNotFound, name, suggest.DidYouMean(name, names))
	}
	if len(rs) == 1 {
		return rs[0], nil
	}

	return nil, fmt.Errorf("%w: the rule file holds %d rules, select one with --name: %s",
		ErrUsage, len(rs), strings.Join(names, ", "))
}

// targetName maps file to a project file name. Paths that exist relative
// to the working directory and lie inside the project root are made
// relative to the root.
func (ws *Workspace) targetName(file string) string {
	data := ws.Simulator.Project()
	if _, ok := data.File(file); ok {
		return file
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return file
	}

	root, err := filepath.Abs(ws.Loader.Root())
	if err != nil {
		return file
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return file
	}

	return filepath.ToSlash(rel)
}

func readContent(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}

		return string(b), nil
	}

	b, err := os.ReadFile(path) //nolint:gosec // G304: User-provided path.
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}

	return string(b), nil
}

// readOverlays reads every NAME=PATH overlay into a NAME to content map.
func readOverlays(overlays map[string]string) (map[string]string, error) {
	if len(overlays) == 0 {
		return nil, nil //nolint:nilnil // No overlay is valid.
	}

	out := make(map[string]string, len(overlays))
	for name, path := range overlays {
		b, err := os.ReadFile(path) //nolint:gosec // G304: User-provided path.
		if err != nil {
			return nil, fmt.Errorf("read overlay %q: %w", name, err)
		}

		out[filepath.ToSlash(name)] = string(b)
	}

	return out, nil
}
