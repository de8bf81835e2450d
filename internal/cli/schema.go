package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/rulesim/api/v1beta1/configs"
	"github.com/macropower/rulesim/api/v1beta1/rules"
)

var schemas = map[string]func() ([]byte, error){
	"rule":   rules.Schema,
	"config": configs.Schema,
}

func NewSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "schema rule|config",
		Short:     "Print the JSON schema of rule or configuration documents",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []cobra.Completion{"rule", "config"},
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := schemas[args[0]]()
			if err != nil {
				return fmt.Errorf("generate %s schema: %w", args[0], err)
			}

			mustN(fmt.Fprintln(cmd.OutOrStdout(), string(b)))

			return nil
		},
	}

	bindEnvVars(cmd)

	return cmd
}
