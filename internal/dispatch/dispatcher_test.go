package dispatch

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-k/tecken/internal/config"
	"github.com/g-k/tecken/internal/launcher"
	"github.com/g-k/tecken/internal/orchestrator"
)

// fakeLauncher records Run and Launch calls and returns scripted errors.
type fakeLauncher struct {
	runs     [][]string
	launches [][]string
	runErr   func(argv []string) error
}

func (f *fakeLauncher) Run(_ context.Context, argv []string) error {
	f.runs = append(f.runs, append([]string(nil), argv...))
	if f.runErr != nil {
		return f.runErr(argv)
	}
	return nil
}

func (f *fakeLauncher) Launch(_ context.Context, argv []string) error {
	f.launches = append(f.launches, append([]string(nil), argv...))
	return nil
}

// fakeReadiness returns a report with the scripted status.
type fakeReadiness struct {
	calls  int
	status string
}

func (f *fakeReadiness) RunReadiness(_ context.Context, deps []orchestrator.Dependency) *orchestrator.Report {
	f.calls++
	status := f.status
	if status == "" {
		status = orchestrator.StatusOK
	}
	results := make(map[string]orchestrator.DependencyResult, len(deps))
	for _, dep := range deps {
		results[dep.Name] = orchestrator.DependencyResult{Name: dep.Name}
	}
	return &orchestrator.Report{Status: status, Deps: results}
}

func testConfig() *config.Config {
	return &config.Config{
		Port: 8000,
		Wait: config.WaitConfig{OnTimeout: config.OnTimeoutContinue},
		Commands: config.CommandsConfig{
			Migrate: []string{"python", "manage.py", "migrate", "--noinput"},
			Serve: []string{
				"gunicorn", "tecken.wsgi:application",
				"-b", "0.0.0.0:{port}",
				"--workers", "4",
				"--access-logfile", "-",
			},
			ServeDev:       []string{"python", "manage.py", "runserver", "0.0.0.0:{port}"},
			WorkerWrapper:  []string{"newrelic-admin", "run-program"},
			Worker:         []string{"celery", "-A", "tecken.celery:app", "worker", "-l", "info"},
			Shell:          []string{"/bin/bash"},
			CoverageErase:  []string{"coverage", "erase"},
			CoverageRun:    []string{"coverage", "run", "-m", "pytest"},
			CoverageReport: []string{"coverage", "report", "-m"},
			CoverageHTML:   []string{"coverage", "html", "--skip-covered"},
			CoverageXML:    []string{"coverage", "xml"},
			CoverageUpload: []string{"codecov", "-f", "coverage.xml"},
		},
	}
}

func makeDispatcher(cfg *config.Config, readiness *fakeReadiness) (*Dispatcher, *fakeLauncher, *bytes.Buffer) {
	l := &fakeLauncher{}
	d := New(cfg, readiness, nil, l)
	hints := &bytes.Buffer{}
	d.hintW = hints
	return d, l, hints
}

func TestDispatch_ZeroArgsIsUsageError(t *testing.T) {
	t.Parallel()

	readiness := &fakeReadiness{}
	d, l, _ := makeDispatcher(testConfig(), readiness)

	err := d.Dispatch(context.Background(), nil)

	var ee *launcher.ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.Code)
	assert.Contains(t, err.Error(), "usage: tecken run")
	assert.Zero(t, readiness.calls, "usage errors precede any dependency waiting")
	assert.Empty(t, l.runs)
	assert.Empty(t, l.launches)
}

func TestDispatch_WebMigratesThenServes(t *testing.T) {
	t.Parallel()

	d, l, _ := makeDispatcher(testConfig(), &fakeReadiness{})

	err := d.Dispatch(context.Background(), []string{"web"})
	require.NoError(t, err)

	require.Len(t, l.runs, 1)
	assert.Equal(t, []string{"python", "manage.py", "migrate", "--noinput"}, l.runs[0])

	require.Len(t, l.launches, 1)
	assert.Equal(t, []string{
		"gunicorn", "tecken.wsgi:application",
		"-b", "0.0.0.0:8000",
		"--workers", "4",
		"--access-logfile", "-",
	}, l.launches[0])
}

func TestDispatch_WebMigrationFailureAbortsServe(t *testing.T) {
	t.Parallel()

	d, l, _ := makeDispatcher(testConfig(), &fakeReadiness{})
	l.runErr = func(argv []string) error {
		if argv[2] == "migrate" {
			return &launcher.ExitError{Code: 2, Err: errors.New("exit status 2")}
		}
		return nil
	}

	err := d.Dispatch(context.Background(), []string{"web"})

	var ee *launcher.ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 2, ee.Code)
	assert.Empty(t, l.launches, "server must not start on a failed migration")
}

func TestDispatch_WebDevUsesConfiguredPort(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Port = 9000
	d, l, _ := makeDispatcher(cfg, &fakeReadiness{})

	err := d.Dispatch(context.Background(), []string{"web-dev"})
	require.NoError(t, err)

	require.Len(t, l.launches, 1)
	assert.Equal(t, []string{"python", "manage.py", "runserver", "0.0.0.0:9000"}, l.launches[0])
}

func TestDispatch_WorkerPrependsWrapper(t *testing.T) {
	t.Parallel()

	d, l, _ := makeDispatcher(testConfig(), &fakeReadiness{})

	err := d.Dispatch(context.Background(), []string{"worker"})
	require.NoError(t, err)

	assert.Empty(t, l.runs, "worker has no migration gate")
	require.Len(t, l.launches, 1)
	assert.Equal(t, []string{
		"newrelic-admin", "run-program",
		"celery", "-A", "tecken.celery:app", "worker", "-l", "info",
	}, l.launches[0])
}

func TestDispatch_WorkerWithoutWrapper(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Commands.WorkerWrapper = nil
	d, l, _ := makeDispatcher(cfg, &fakeReadiness{})

	err := d.Dispatch(context.Background(), []string{"worker"})
	require.NoError(t, err)

	require.Len(t, l.launches, 1)
	assert.Equal(t, []string{"celery", "-A", "tecken.celery:app", "worker", "-l", "info"}, l.launches[0])
}

func TestDispatch_BashPrintsHintThenExecsShell(t *testing.T) {
	t.Parallel()

	d, l, hints := makeDispatcher(testConfig(), &fakeReadiness{})

	err := d.Dispatch(context.Background(), []string{"bash"})
	require.NoError(t, err)

	assert.Contains(t, hints.String(), "manage.py shell")
	require.Len(t, l.launches, 1)
	assert.Equal(t, []string{"/bin/bash"}, l.launches[0])
}

func TestDispatch_BashWithArgsExecsThemInstead(t *testing.T) {
	t.Parallel()

	d, l, hints := makeDispatcher(testConfig(), &fakeReadiness{})

	err := d.Dispatch(context.Background(), []string{"bash", "ls", "-la"})
	require.NoError(t, err)

	assert.NotEmpty(t, hints.String(), "the hint prints even when args are given")
	require.Len(t, l.launches, 1)
	assert.Equal(t, []string{"ls", "-la"}, l.launches[0])
}

func TestDispatch_UnknownModeRunsVerbatim(t *testing.T) {
	t.Parallel()

	d, l, hints := makeDispatcher(testConfig(), &fakeReadiness{})

	err := d.Dispatch(context.Background(), []string{"python", "manage.py", "superuser"})
	require.NoError(t, err)

	assert.Empty(t, hints.String())
	assert.Empty(t, l.runs)
	require.Len(t, l.launches, 1)
	assert.Equal(t, []string{"python", "manage.py", "superuser"}, l.launches[0])
}

func TestDispatch_ReadinessSkippedOutsideDevelopment(t *testing.T) {
	t.Parallel()

	readiness := &fakeReadiness{status: orchestrator.StatusError}
	d, l, _ := makeDispatcher(testConfig(), readiness)

	err := d.Dispatch(context.Background(), []string{"worker"})
	require.NoError(t, err)

	assert.Zero(t, readiness.calls)
	assert.Len(t, l.launches, 1)
}

func TestDispatch_ReadinessRunsInDevelopment(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Runtime.Development = true
	readiness := &fakeReadiness{}
	d, l, _ := makeDispatcher(cfg, readiness)

	err := d.Dispatch(context.Background(), []string{"worker"})
	require.NoError(t, err)

	assert.Equal(t, 1, readiness.calls)
	assert.Len(t, l.launches, 1)
}

func TestDispatch_TimedOutDependenciesContinueByDefault(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Runtime.Development = true
	readiness := &fakeReadiness{status: orchestrator.StatusError}
	d, l, _ := makeDispatcher(cfg, readiness)

	err := d.Dispatch(context.Background(), []string{"worker"})
	require.NoError(t, err)

	assert.Equal(t, 1, readiness.calls)
	assert.Len(t, l.launches, 1, "continue policy dispatches despite the timeout")
}

func TestDispatch_TimedOutDependenciesAbortWhenConfigured(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Runtime.Development = true
	cfg.Wait.OnTimeout = config.OnTimeoutAbort
	readiness := &fakeReadiness{status: orchestrator.StatusError}
	d, l, _ := makeDispatcher(cfg, readiness)

	err := d.Dispatch(context.Background(), []string{"worker"})

	var ee *launcher.ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 1, ee.Code)
	assert.Empty(t, l.launches, "abort policy never dispatches")
}
