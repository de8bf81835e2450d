package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var envReplacer = strings.NewReplacer("-", "_", ".", "_")

// bindEnvVars lets every flag of cmd be set through a RULESIM_<FLAG>
// environment variable, e.g. --log-level through RULESIM_LOG_LEVEL.
// Command line arguments win over the environment, which wins over
// defaults. The variable name is appended to each flag's usage.
func bindEnvVars(cmd *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
		fs.VisitAll(bindFlagToEnv)
	}
}

func bindFlagToEnv(flag *pflag.Flag) {
	name := flagToEnvName(flag.Name)

	suffix := fmt.Sprintf("($%s)", name)
	if !strings.HasSuffix(flag.Usage, suffix) {
		flag.Usage += " " + suffix
	}

	value, ok := os.LookupEnv(name)
	if !ok || flag.Changed {
		return
	}

	err := flag.Value.Set(value)
	if err != nil {
		slog.Error("ignore invalid environment variable",
			slog.String("flag", flag.Name),
			slog.String("env", name),
			slog.String("value", value),
			slog.Any("err", err),
		)
	}
}

// flagToEnvName returns the environment variable bound to a flag name.
func flagToEnvName(flagName string) string {
	return strings.ToUpper(cmdName + "_" + envReplacer.Replace(flagName))
}
