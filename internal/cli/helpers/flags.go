package helpers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/coral-mesh/coral-probe/internal/config"
	"github.com/coral-mesh/coral-probe/internal/logging"
)

// Persistent flags registered on the root command.
const (
	ConfigFlag   = "config"
	LogLevelFlag = "log-level"
)

// AddFormatFlag adds a standard --format/-o flag to a command.
// Validates that the format is in the supportedFormats list.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supportedFormats []OutputFormat) {
	formatNames := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formatNames[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(formatNames, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "o", string(defaultFormat), description)

	// Add shell completion for format flag.
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return formatNames, cobra.ShellCompDirectiveNoFileComp
	})
}

// ValidateFormat checks if the format is in the supported list.
func ValidateFormat(format string, supported []OutputFormat) error {
	for _, s := range supported {
		if format == string(s) {
			return nil
		}
	}

	supportedNames := make([]string, len(supported))
	for i, s := range supported {
		supportedNames[i] = string(s)
	}

	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(supportedNames, ", "))
}

// Write formats data to w in the given format.
func Write(w io.Writer, format string, data interface{}) error {
	if err := ValidateFormat(format, AllFormats); err != nil {
		return err
	}
	formatter, err := NewFormatter(OutputFormat(format))
	if err != nil {
		return err
	}
	return formatter.Format(data, w)
}

// LoadConfig loads the configuration named by the --config flag and builds the
// command logger. A --log-level flag overrides the configured level; console
// output is pretty printed when stderr is a terminal.
func LoadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	path, _ := cmd.Flags().GetString(ConfigFlag)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	if level, _ := cmd.Flags().GetString(LogLevelFlag); level != "" {
		if _, err := logging.ParseLevel(level); err != nil {
			return nil, zerolog.Nop(), err
		}
		cfg.Logging.Level = level
	}

	tty := isTerminal(os.Stderr)
	logger := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Pretty:  cfg.Logging.Pretty || tty,
		NoColor: !tty,
		Output:  cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int
}
