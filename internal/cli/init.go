package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/macropower/rulesim/api"
	"github.com/macropower/rulesim/api/v1beta1/configs"
)

// ErrConfigExists is returned by init when the target file exists and
// --force is not set.
var ErrConfigExists = errors.New("configuration file already exists")

func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := api.ConfigFileNames[0]
			if len(args) > 0 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%w: %s, use --force to replace it", ErrConfigExists, path)
			}

			err := configs.WriteDefault(path, force)
			if err != nil {
				return err //nolint:wrapcheck // Already wrapped.
			}

			mustN(fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path))

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	bindEnvVars(cmd)

	return cmd
}
