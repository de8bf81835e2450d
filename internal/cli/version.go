package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/rulesim/pkg/version"
)

func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			mustN(fmt.Fprintf(w, "%s %s\n", cmdName, version.GetVersion()))
			mustN(fmt.Fprintf(w, "  revision: %s\n", version.Revision))
			if version.BuildDate != "" {
				mustN(fmt.Fprintf(w, "  built:    %s\n", version.BuildDate))
			}
			mustN(fmt.Fprintf(w, "  go:       %s %s/%s\n", version.GoVersion, version.GoOS, version.GoArch))
		},
	}

	bindEnvVars(cmd)

	return cmd
}
