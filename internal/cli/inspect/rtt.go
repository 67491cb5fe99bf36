// Package inspect implements the coral-probe commands that examine a firmware
// binary on the host, without a probe attached.
package inspect

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-probe/internal/cli/helpers"
	coralerrors "github.com/coral-mesh/coral-probe/internal/errors"
	"github.com/coral-mesh/coral-probe/internal/rtt"
	"github.com/coral-mesh/coral-probe/internal/safe"
)

// RTTScanResult describes the RTT support found in a binary.
type RTTScanResult struct {
	Binary       string `header:"BINARY" json:"binary" yaml:"binary"`
	Symbol       string `header:"SYMBOL" json:"symbol" yaml:"symbol"`
	Found        bool   `header:"FOUND" json:"found" yaml:"found"`
	ControlBlock string `header:"ADDRESS" json:"control_block,omitempty" yaml:"control_block,omitempty"`
	Defmt        bool   `header:"DEFMT" json:"defmt" yaml:"defmt"`
}

// NewRTTScanCmd creates the rtt-scan command.
func NewRTTScanCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "rtt-scan <elf>",
		Short: "Locate the RTT control block in a firmware binary",
		Long: `Look up the _SEGGER_RTT symbol in the ELF symbol table of a firmware binary.

The debugger attaches to RTT at exactly this address once the target runs.
The DEFMT column reports whether the binary carries a defmt string table,
which channels configured with data_format: defmt require.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}

			result, err := scanRTT(args[0], func(path string) (bool, error) {
				return rtt.HasDefmtData(path, logger)
			})
			if err != nil {
				return err
			}
			if !result.Found {
				logger.Debug().Str("binary", args[0]).Msg("No RTT control block symbol")
			}

			if format == string(helpers.FormatTable) {
				return helpers.Write(cmd.OutOrStdout(), format, []RTTScanResult{result})
			}
			return helpers.Write(cmd.OutOrStdout(), format, result)
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)

	return cmd
}

func scanRTT(path string, hasDefmt func(string) (bool, error)) (result RTTScanResult, err error) {
	f, err := safe.OpenRegularFile(path, &safe.OpenFileOptions{AllowSymlinks: true})
	if err != nil {
		return RTTScanResult{}, fmt.Errorf("failed to open binary: %w", err)
	}
	defer coralerrors.CloseInto(f, &err, "failed to close binary")

	result = RTTScanResult{Binary: path, Symbol: rtt.ControlBlockSymbol}
	if addr, ok := rtt.FindControlBlock(f); ok {
		result.Found = true
		result.ControlBlock = fmt.Sprintf("0x%08x", addr)
	}

	result.Defmt, err = hasDefmt(path)
	if err != nil {
		return RTTScanResult{}, err
	}
	return result, nil
}
