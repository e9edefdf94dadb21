package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const tracerName = "tecken-run"

// Prober is a protocol-level readiness check, satisfied by the concrete
// client types in the clients package.
type Prober interface {
	Probe(ctx context.Context) ProbeResult
}

// Orchestrator sequences dependency waits and deep health probes.
type Orchestrator struct {
	policy   RetryPolicy
	parallel bool
	probers  map[string]Prober

	dial  dialFunc
	sleep sleepFunc
}

// New constructs an Orchestrator. probers maps dependency names to
// protocol-level probes; dependencies without one are checked with plain
// TCP connects.
func New(policy RetryPolicy, parallel bool, probers map[string]Prober) *Orchestrator {
	if probers == nil {
		probers = make(map[string]Prober)
	}
	return &Orchestrator{
		policy:   policy,
		parallel: parallel,
		probers:  probers,
		dial:     defaultDial,
		sleep:    defaultSleep,
	}
}

// RunReadiness waits for every dependency, sequentially in the given order
// by default or concurrently when configured. A timed-out dependency marks
// the report StatusError but never stops the remaining waits; deciding what
// to do about an error report is the caller's business.
func (o *Orchestrator) RunReadiness(ctx context.Context, deps []Dependency) *Report {
	report := &Report{
		Status: StatusInProgress,
		Deps:   make(map[string]DependencyResult, len(deps)),
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "run.readiness")
	defer span.End()
	span.SetAttributes(
		attribute.Int("readiness.dependencies", len(deps)),
		attribute.Bool("readiness.parallel", o.parallel),
	)

	slog.InfoContext(ctx, "readiness checks started", "dependencies", len(deps))

	if o.parallel {
		var g errgroup.Group
		for _, dep := range deps {
			dep := dep
			g.Go(func() error {
				res := o.WaitFor(ctx, dep)
				report.Lock()
				report.Deps[dep.Name] = res
				report.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, dep := range deps {
			res := o.WaitFor(ctx, dep)
			report.Lock()
			report.Deps[dep.Name] = res
			report.Unlock()
			if ctx.Err() != nil {
				break
			}
		}
	}

	report.Status = StatusOK
	for _, res := range report.Deps {
		if !res.Reachable() {
			report.Status = StatusError
			break
		}
	}

	span.SetAttributes(attribute.String("readiness.status", report.Status))
	if report.Status == StatusError {
		span.SetStatus(codes.Error, "one or more dependencies unreachable")
		slog.WarnContext(ctx, "readiness checks finished with unreachable dependencies",
			"status", report.Status)
	} else {
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "readiness checks finished", "status", report.Status)
	}

	return report
}

// RunDeepHealth probes every registered dependency concurrently and returns
// a map of dependency name to ProbeResult.
func (o *Orchestrator) RunDeepHealth(ctx context.Context) map[string]ProbeResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "check.probes")
	defer span.End()

	results := make(map[string]ProbeResult, len(o.probers))
	var mu sync.Mutex
	var g errgroup.Group

	for name, p := range o.probers {
		name, p := name, p
		g.Go(func() error {
			probe := p.Probe(ctx)
			mu.Lock()
			results[name] = probe
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}
