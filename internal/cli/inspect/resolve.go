package inspect

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-probe/internal/cli/helpers"
	"github.com/coral-mesh/coral-probe/internal/debuginfo"
	"github.com/coral-mesh/coral-probe/internal/session"
)

// ResolveResult is a breakpoint location verified against the line tables.
type ResolveResult struct {
	Requested string `header:"REQUESTED" json:"requested" yaml:"requested"`
	Address   string `header:"ADDRESS" json:"address" yaml:"address"`
	Location  string `header:"LOCATION" json:"location" yaml:"location"`
}

// NewResolveCmd creates the resolve command.
func NewResolveCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "resolve <elf> <file> <line> [column]",
		Short: "Resolve a source location to a breakpoint address",
		Long: `Resolve a source location to the address a breakpoint would be set at.

The location moves forward to the next line (and column) that has code, the
same way breakpoints requested by a debugger client are verified.`,
		Example: `  coral-probe resolve firmware.elf src/main.rs 42
  coral-probe resolve firmware.elf main.c 17 5 -o json`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}

			line, column, err := parseLineColumn(args[2:])
			if err != nil {
				return err
			}

			info, err := debuginfo.Open(args[0], logger)
			if err != nil {
				return err
			}

			result, err := resolve(info, args[1], line, column)
			if err != nil {
				return err
			}

			if format == string(helpers.FormatTable) {
				return helpers.Write(cmd.OutOrStdout(), format, []ResolveResult{result})
			}
			return helpers.Write(cmd.OutOrStdout(), format, result)
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)

	return cmd
}

func parseLineColumn(args []string) (uint64, *uint64, error) {
	line, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || line == 0 {
		return 0, nil, fmt.Errorf("invalid line %q", args[0])
	}
	if len(args) < 2 {
		return line, nil, nil
	}

	column, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid column %q", args[1])
	}
	return line, &column, nil
}

func resolve(resolver debuginfo.Resolver, path string, line uint64, column *uint64) (ResolveResult, error) {
	requested := fmt.Sprintf("%s:%d", path, line)
	if column != nil {
		requested = fmt.Sprintf("%s:%d", requested, *column)
	}

	verified, err := resolver.BreakpointLocation(path, line, column)
	if err != nil {
		return ResolveResult{}, &session.BreakpointLocationError{Path: path, Line: line, Column: column, Err: err}
	}

	return ResolveResult{
		Requested: requested,
		Address:   fmt.Sprintf("0x%08x", verified.Address),
		Location:  verified.SourceLocation.String(),
	}, nil
}
