package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/macropower/rulesim/api"
	"github.com/macropower/rulesim/api/v1beta1/configs"
	"github.com/macropower/rulesim/api/v1beta1/rules"
	"github.com/macropower/rulesim/pkg/condition"
	"github.com/macropower/rulesim/pkg/fact"
	"github.com/macropower/rulesim/pkg/suggest"
)

var (
	// ErrValidationFailed is returned when at least one rule file is invalid.
	ErrValidationFailed = errors.New("validation failed")

	ErrUnknownFact     = errors.New("unknown fact")
	ErrUnknownOperator = errors.New("unknown operator")
)

type ValidateArgs struct {
	*RootArgs

	ConfigPath string
	Paths      []string
}

func NewValidateCmd(rootArgs *RootArgs) *cobra.Command {
	va := &ValidateArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "validate RULE...",
		Short: "Check rule files against the schema and the known facts and operators",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			va.Paths = args

			return va.run(cmd)
		},
	}

	cmd.Flags().StringVar(&va.ConfigPath, "config", "", "Path to the rulesim configuration file")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	bindEnvVars(cmd)

	return cmd
}

func (va *ValidateArgs) run(cmd *cobra.Command) error {
	color := va.colorEnabled(cmd.ErrOrStderr())

	reg, err := va.registry(color)
	if err != nil {
		return err
	}

	failed := 0

	for _, path := range va.Paths {
		rs, err := rules.Load(path, rules.WithStrict(true), rules.WithColor(color))
		if err == nil {
			err = checkRules(rs, reg)
		}
		if err != nil {
			failed++

			mustN(fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err))

			continue
		}

		mustN(fmt.Fprintf(cmd.OutOrStdout(), "%s: %s ok\n", path, english.Plural(len(rs), "rule", "")))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, english.Plural(failed, "invalid file", ""))
	}

	return nil
}

func (va *ValidateArgs) registry(color bool) (*fact.Registry, error) {
	path, err := api.ResolveConfigPath(va.ConfigPath, ".")
	if err != nil {
		return nil, fmt.Errorf("find config: %w", err)
	}

	cfg := configs.New()
	if path != "" {
		cfg, err = loadConfig(path, color)
		if err != nil {
			return nil, err
		}
	}

	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	return reg, nil
}

// checkRules reports every leaf that names a fact or operator the
// registry does not know.
func checkRules(rs []*rules.Rule, reg *fact.Registry) error {
	var errs []error

	for _, r := range rs {
		condition.Walk(r.Root(), func(p condition.Path, c condition.Condition) {
			leaf, ok := c.(*condition.Leaf)
			if !ok {
				return
			}

			if _, ok := reg.Fact(leaf.Fact); !ok {
				errs = append(errs, fmt.Errorf("rule %q: %s: %w %q%s",
					r.Name, p, ErrUnknownFact, leaf.Fact, suggest.DidYouMean(leaf.Fact, reg.FactNames())))
			}

			if _, ok := reg.Operator(leaf.Operator); !ok {
				errs = append(errs, fmt.Errorf("rule %q: %s: %w %q%s",
					r.Name, p, ErrUnknownOperator, leaf.Operator, suggest.DidYouMean(leaf.Operator, reg.OperatorNames())))
			}
		})
	}

	return errors.Join(errs...)
}
