package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-probe/internal/cli/config"
	"github.com/coral-mesh/coral-probe/internal/cli/helpers"
	"github.com/coral-mesh/coral-probe/internal/cli/inspect"
	coreconfig "github.com/coral-mesh/coral-probe/internal/config"
	"github.com/coral-mesh/coral-probe/internal/logging"
	"github.com/coral-mesh/coral-probe/pkg/version"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coral-probe",
		Short: "coral-probe - per-core debug sessions for embedded targets",
		Long: `Debug embedded multi-core targets through a hardware probe.

Each core keeps its own session: execution status reported to the debugger
client, breakpoints that survive a reflash, RTT logging channels forwarded
to client windows, and the stack frames of the last halt.

The commands below inspect firmware binaries and configuration on the host.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(helpers.ConfigFlag, coreconfig.FileName, "Path to the configuration file")
	rootCmd.PersistentFlags().String(helpers.LogLevelFlag, "",
		fmt.Sprintf("Log level (%s)", strings.Join(logging.Levels, ", ")))

	rootCmd.AddCommand(inspect.NewRTTScanCmd())
	rootCmd.AddCommand(inspect.NewResolveCmd())
	rootCmd.AddCommand(inspect.NewFingerprintCmd())
	rootCmd.AddCommand(config.NewConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), version.Report())
			return err
		},
	}
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}
