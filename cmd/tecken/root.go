package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/g-k/tecken/internal/config"
	"github.com/g-k/tecken/internal/launcher"
	"github.com/g-k/tecken/internal/telemetry"
)

var (
	cfgFile  string
	logLevel string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "tecken",
	Short: "Symbol server entrypoint",
	Long: `tecken is the symbol server's container entrypoint.
It waits for service dependencies to accept connections, then hands
control to the requested mode: the web server, the worker, the test
suite, a shell, or an arbitrary command.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogger(logLevel)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// --log-level flag takes precedence over value in config file.
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		configureLogger(cfg.Logging)

		app, err = buildAppContext(cfg)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}

		return nil
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute is the entry point called by main. Child exit statuses carried in
// an ExitError become the process exit code, so upstream supervisors see
// the launched program's true code rather than a generic failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *launcher.ExitError
		if errors.As(err, &ee) {
			os.Exit(ee.Code)
		}
		os.Exit(1)
	}
}

// initLogger installs a minimal JSON logger so that config loading itself
// has somewhere to log. configureLogger replaces it once config is known.
func initLogger(level string) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	slog.SetDefault(slog.New(telemetry.NewTraceHandler(handler)))
}

// configureLogger rebuilds the default logger from the loaded config: JSON
// or text format, an optional copy to a log file, and a run id stamped on
// every record for correlating one invocation's output.
func configureLogger(lc config.LoggingConfig) {
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}

	newHandler := func(w io.Writer) slog.Handler {
		if lc.UseJSON {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}

	handler := newHandler(os.Stdout)
	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Warn("log file unavailable, logging to stdout only", "path", lc.File, "err", err)
		} else {
			handler = telemetry.NewTeeHandler(handler, newHandler(f))
		}
	}

	logger := slog.New(telemetry.NewTraceHandler(handler)).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
