package inspect

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-probe/internal/cli/helpers"
	"github.com/coral-mesh/coral-probe/internal/debuginfo"
)

// NewFingerprintCmd creates the fingerprint command.
func NewFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <elf>...",
		Short: "Print the content fingerprint of firmware binaries",
		Long: `Print the xxh3 fingerprint of each binary.

Breakpoints are only recomputed after a reflash when the fingerprint of the
program binary changes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}

			for _, path := range args {
				sum, err := debuginfo.FingerprintFile(path, logger)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%016x  %s\n", sum, path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
