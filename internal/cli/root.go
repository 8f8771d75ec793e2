package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/starrybamboo/chatsync/internal/config"
	"github.com/starrybamboo/chatsync/internal/metrics"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	EnvFile     string
	MetricsFile string

	// Logger is set by the root command; subcommands built on their own
	// (tests) fall back to a discarding logger.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the chatsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chatsync",
		Short: "chatsync - offline-first room state sync",
		Long: `Replicate chat room documents through a shared snapshot remote.

Writes made while the remote is unreachable are queued locally and flushed
on the next pull. Every replica converges to the same merged state.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to seed the environment from")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write sync counters here on exit (Prometheus text format)")

	// Add subcommands
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewFlushCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGuardCommand(opts))
	cmd.AddCommand(NewCrossfadeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// logger returns the configured logger or one that discards everything.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loadConfig seeds the environment from the dotenv file and loads the
// effective configuration.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(o.EnvFile); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load env file", err)
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// writeMetrics dumps m to --metrics-file, if one was given.
func (o *RootOptions) writeMetrics(m *metrics.Metrics) {
	if o.MetricsFile == "" {
		return
	}
	if err := m.WriteFile(o.MetricsFile); err != nil {
		o.logger().Warn("failed to write metrics", "path", o.MetricsFile, "error", err)
	}
}

// formatter builds an OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
