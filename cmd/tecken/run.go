package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <mode> [args...]",
	Short: "Wait for dependencies, then start the given mode",
	Long: `Run waits for service dependencies when DEVELOPMENT is set, then
hands control to the selected mode.

Modes:
  web      apply migrations, then start the production web server
  web-dev  apply migrations, then start the development server
  worker   start the background worker
  test     run the coverage pipeline (extra args go to the suite runner)
  bash     print a hint, then start a shell (or the given command)

Any other mode runs the argument list verbatim.`,
	DisableFlagsInUseLine: true,
	RunE:                  runRun,
}

func init() {
	// Everything after the mode token belongs to the launched program,
	// including arguments that look like flags.
	runCmd.Flags().SetInterspersed(false)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// On the replace path this defer never runs; the process image is gone.
	// It covers supervised modes, the test pipeline, and error returns.
	if app.otelProvider != nil {
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := app.otelProvider.Shutdown(shutCtx); err != nil {
				slog.Warn("OTEL shutdown error", "err", err)
			}
		}()
	}

	return app.dispatcher.Dispatch(ctx, args)
}
