// Package dispatch maps run modes to the external commands that serve
// them, gated on the readiness phase when development mode is active.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/g-k/tecken/internal/config"
	"github.com/g-k/tecken/internal/launcher"
	"github.com/g-k/tecken/internal/orchestrator"
)

const tracerName = "tecken-run"

const shellHint = "NOTE: run 'python manage.py shell' for a Django shell"

// ReadinessRunner is the slice of the orchestrator Dispatch depends on.
type ReadinessRunner interface {
	RunReadiness(ctx context.Context, deps []orchestrator.Dependency) *orchestrator.Report
}

// Dispatcher routes one run invocation to its mode handler.
type Dispatcher struct {
	cfg       *config.Config
	readiness ReadinessRunner
	deps      []orchestrator.Dependency
	launcher  launcher.Launcher
	hintW     io.Writer
}

// New builds a Dispatcher. deps is the parsed wait-target list, consulted
// only when the development signal enables the readiness phase.
func New(cfg *config.Config, readiness ReadinessRunner, deps []orchestrator.Dependency, l launcher.Launcher) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		readiness: readiness,
		deps:      deps,
		launcher:  l,
		hintW:     os.Stdout,
	}
}

// Dispatch interprets args as "<mode> [extra...]", runs the readiness
// phase if enabled, and hands control to the mode. Arguments past the mode
// name are consumed by test and bash; every other recognized mode ignores
// them.
func (d *Dispatcher) Dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return &launcher.ExitError{
			Code: 1,
			Err:  errors.New("usage: tecken run web|web-dev|worker|test|bash|<command> [args...]"),
		}
	}

	mode := ParseMode(args[0])
	extra := args[1:]

	// The span closes normally on supervised paths; a process replacement
	// discards it along with the rest of the process image.
	ctx, span := otel.Tracer(tracerName).Start(ctx, "run.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("dispatch.mode", string(mode)))

	if err := d.awaitDependencies(ctx); err != nil {
		return err
	}

	switch mode {
	case ModeWeb:
		return d.serveWeb(ctx, d.cfg.Commands.Serve)
	case ModeWebDev:
		return d.serveWeb(ctx, d.cfg.Commands.ServeDev)
	case ModeWorker:
		return d.runWorker(ctx)
	case ModeTest:
		return d.runTestPipeline(ctx, extra)
	case ModeBash:
		return d.runShell(ctx, extra)
	default:
		return d.launcher.Launch(ctx, args)
	}
}

// awaitDependencies blocks on the readiness phase in development, where
// docker compose starts dependencies alongside this container. Production
// deployments gate on the platform's health checks and skip it entirely.
func (d *Dispatcher) awaitDependencies(ctx context.Context) error {
	if !d.cfg.Runtime.Development {
		return nil
	}

	report := d.readiness.RunReadiness(ctx, d.deps)
	if report.Status != orchestrator.StatusError {
		return nil
	}

	if d.cfg.Wait.OnTimeout == config.OnTimeoutAbort {
		return &launcher.ExitError{Code: 1, Err: errors.New("dependencies unreachable")}
	}
	slog.WarnContext(ctx, "dependencies unreachable, continuing anyway",
		"on_timeout", d.cfg.Wait.OnTimeout)
	return nil
}

// serveWeb applies migrations, then launches the given server command.
// A migration failure aborts with the migration's own exit code so a
// half-migrated schema never takes traffic.
func (d *Dispatcher) serveWeb(ctx context.Context, serve []string) error {
	slog.InfoContext(ctx, "applying database migrations")
	if err := d.launcher.Run(ctx, d.cfg.Commands.Migrate); err != nil {
		return err
	}
	return d.launcher.Launch(ctx, d.expandPort(serve))
}

func (d *Dispatcher) runWorker(ctx context.Context) error {
	argv := make([]string, 0, len(d.cfg.Commands.WorkerWrapper)+len(d.cfg.Commands.Worker))
	argv = append(argv, d.cfg.Commands.WorkerWrapper...)
	argv = append(argv, d.cfg.Commands.Worker...)
	return d.launcher.Launch(ctx, argv)
}

// runShell prints the operational hint, then hands off to the supplied
// command, or to an interactive shell when there is none.
func (d *Dispatcher) runShell(ctx context.Context, extra []string) error {
	fmt.Fprintln(d.hintW, shellHint)
	argv := extra
	if len(argv) == 0 {
		argv = d.cfg.Commands.Shell
	}
	return d.launcher.Launch(ctx, argv)
}

// expandPort substitutes the {port} placeholder in each argv element.
func (d *Dispatcher) expandPort(argv []string) []string {
	port := strconv.Itoa(d.cfg.Port)
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, "{port}", port)
	}
	return out
}
