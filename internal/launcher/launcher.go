// Package launcher starts the external programs the run modes resolve to,
// either by replacing the current process image or by supervising a child
// and mirroring its exit status.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/g-k/tecken/internal/config"
)

// ExitError signals that the process should terminate with Code. It is how
// a child's exit status propagates up to main without os.Exit calls from
// library code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Launcher starts external programs on behalf of the run modes.
type Launcher interface {
	// Launch hands control to argv. Under the replace strategy, on
	// platforms that can swap the process image, a successful Launch
	// never returns; everywhere else it behaves like Run. Spawn failures
	// come back as *ExitError.
	Launch(ctx context.Context, argv []string) error

	// Run executes argv as a supervised child with inherited stdio and
	// returns nil on exit 0, or an *ExitError carrying the child's exit
	// code.
	Run(ctx context.Context, argv []string) error
}

// ProcessLauncher is the real Launcher. The exec and lookPath seams let
// tests exercise the replace strategy without replacing the test process.
type ProcessLauncher struct {
	strategy string
	execFn   func(argv0 string, argv, env []string) error
	lookPath func(file string) (string, error)
}

// NewProcessLauncher returns a ProcessLauncher using the given strategy,
// one of config.StrategyReplace or config.StrategySupervise.
func NewProcessLauncher(strategy string) *ProcessLauncher {
	return &ProcessLauncher{
		strategy: strategy,
		execFn:   sysExec,
		lookPath: exec.LookPath,
	}
}

// Launch replaces the current process with argv when the strategy is
// replace, so signals and exit status flow to the container runtime without
// an intermediary. Under supervise, or where the platform cannot replace a
// process image, it delegates to Run.
func (l *ProcessLauncher) Launch(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return &ExitError{Code: 1, Err: errors.New("empty command")}
	}

	if l.strategy != config.StrategyReplace || !replaceSupported {
		return l.Run(ctx, argv)
	}

	path, err := l.lookPath(argv[0])
	if err != nil {
		return spawnExit(argv[0], err)
	}

	slog.InfoContext(ctx, "replacing process", "cmd", argv[0], "args", argv[1:])

	if err := l.execFn(path, argv, os.Environ()); err != nil {
		return spawnExit(argv[0], err)
	}
	return nil
}

// Run starts argv as a child process with inherited stdio, forwards
// SIGINT and SIGTERM to it, and waits. A non-zero exit comes back as an
// *ExitError with the child's code; death by signal maps to 128+signal.
func (l *ProcessLauncher) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return &ExitError{Code: 1, Err: errors.New("empty command")}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	slog.InfoContext(ctx, "starting supervised process", "cmd", argv[0], "args", argv[1:])

	if err := cmd.Start(); err != nil {
		return spawnExit(argv[0], err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				_ = cmd.Process.Signal(sig)
			case <-ctx.Done():
				_ = cmd.Process.Signal(syscall.SIGTERM)
				return
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	close(done)
	signal.Stop(sigCh)

	if err == nil {
		return nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Code: waitExitCode(ee), Err: err}
	}
	return &ExitError{Code: 1, Err: err}
}

// spawnExit maps a spawn failure to the shell's exit code convention:
// 127 for a missing program, 126 for one that cannot be executed.
func spawnExit(argv0 string, err error) *ExitError {
	code := 1
	switch {
	case errors.Is(err, exec.ErrNotFound):
		code = 127
	case errors.Is(err, fs.ErrPermission):
		code = 126
	}
	return &ExitError{Code: code, Err: fmt.Errorf("launching %s: %w", argv0, err)}
}
