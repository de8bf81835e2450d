package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macropower/rulesim/pkg/mcp"
)

type ServeMCPArgs struct {
	*RootArgs
	ProjectArgs

	Address string
}

func NewServeMCPCmd(rootArgs *RootArgs) *cobra.Command {
	ma := &ServeMCPArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the simulator as MCP tools, over stdio or streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ma.run(cmd)
		},
	}

	ma.ProjectArgs.AddFlags(cmd)
	cmd.Flags().StringVar(&ma.Address, "address", "", "Serve over streamable HTTP at this address instead of stdio")

	bindEnvVars(cmd)

	return cmd
}

func (ma *ServeMCPArgs) run(cmd *cobra.Command) error {
	ws, err := ma.Open(ma.colorEnabled(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(ma.Address, ws.Simulator, mcp.WithRunOptions(ma.Options()))
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	transport := "stdio"
	if ma.Address != "" {
		transport = ma.Address
	}

	slog.Info("serving MCP",
		slog.String("transport", transport),
		slog.String("root", ws.Loader.Root()),
	)

	err = srv.Serve(cmd.Context())
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}

	return nil
}
