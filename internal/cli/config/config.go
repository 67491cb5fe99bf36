// Package config implements the 'coral-probe config' command family.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-probe/internal/cli/helpers"
	"github.com/coral-mesh/coral-probe/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect coral-probe configuration",
		Long: `Inspect coral-probe configuration.

Configuration Priority:
  1. Environment variables (highest)
  2. Configuration file (--config, default ./` + config.FileName + `)
  3. Built-in defaults

Environment Variables:
  CORAL_PROBE_LOG_LEVEL          Log level (trace, debug, info, warn, error)
  CORAL_PROBE_TIMESTAMP_OFFSET   UTC offset of RTT timestamps (+HH:MM, -HH:MM, Z)
  CORAL_PROBE_RTT_ENABLED        Attach to RTT channels (true, false)`,
	}

	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newViewCmd())

	return cmd
}

// newSchemaCmd creates the 'config schema' command.
func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.JSONSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

// newValidateCmd creates the 'config validate' command.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file and report every problem found.

Environment overrides are applied before validation, so the result is the
configuration a session would start with.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		var multi *config.MultiValidationError
		if errors.As(err, &multi) {
			cmd.PrintErrf("✗ %s is invalid\n", path)
			for _, e := range multi.Errors {
				cmd.PrintErrf("  %s\n", e.Error())
			}
		}
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (version %s, %d RTT channel(s) configured)\n",
		path, cfg.Version, len(cfg.RTT.Channels))
	return err
}

// newViewCmd creates the 'config view' command.
func newViewCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		Long:  `Show the configuration after defaults, the configuration file and environment overrides are applied.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			return helpers.Write(cmd.OutOrStdout(), format, cfg)
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatYAML, []helpers.OutputFormat{
		helpers.FormatJSON,
		helpers.FormatYAML,
	})

	return cmd
}
