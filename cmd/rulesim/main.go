package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/macropower/rulesim/internal/cli"
	"github.com/macropower/rulesim/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	shutdown, err := cli.SetupTracing(ctx)
	if err != nil {
		slog.Warn("tracing disabled", slog.Any("err", err))
	}

	defer func() {
		err := shutdown(context.WithoutCancel(ctx))
		if err != nil {
			slog.Error("shutdown tracing", slog.Any("err", err))
		}
	}()

	err = fang.Execute(ctx, cli.NewRootCmd(),
		fang.WithColorSchemeFunc(cli.ColorScheme),
		fang.WithErrorHandler(cli.ErrorHandler),
		fang.WithVersion(version.GetVersion()),
		fang.WithCommit(version.Revision),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err != nil {
		return 1
	}

	return 0
}
