package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultDial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// defaultSleep waits d or until ctx is cancelled, whichever comes first.
func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitFor polls a single dependency until it is reachable or the retry
// budget is spent. An immediate success returns without sleeping; a failed
// attempt sleeps one interval before the next, with no sleep after the
// last. It logs once when waiting begins and once when it resolves, never
// per attempt.
func (o *Orchestrator) WaitFor(ctx context.Context, dep Dependency) DependencyResult {
	start := time.Now()

	slog.InfoContext(ctx, "waiting for dependency",
		"name", dep.Name,
		"target", dep.Target(),
		"max_attempts", o.policy.MaxAttempts,
		"interval", o.policy.Interval.String(),
	)

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		attempts = attempt

		err := o.attempt(ctx, dep)
		if err == nil {
			slog.InfoContext(ctx, "dependency reachable", "name", dep.Name, "attempts", attempt)
			return DependencyResult{
				Name:      dep.Name,
				Target:    dep.Target(),
				State:     StateReachable,
				Attempts:  attempt,
				ElapsedMs: time.Since(start).Milliseconds(),
			}
		}
		lastErr = err

		if attempt == o.policy.MaxAttempts {
			break
		}
		if err := o.sleep(ctx, o.policy.Interval); err != nil {
			lastErr = err
			break
		}
	}

	result := DependencyResult{
		Name:      dep.Name,
		Target:    dep.Target(),
		State:     StateTimedOut,
		Attempts:  attempts,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	if lastErr != nil {
		result.LastError = lastErr.Error()
	}
	slog.WarnContext(ctx, "dependency wait timed out",
		"name", dep.Name, "attempts", attempts, "error", result.LastError)
	return result
}

// attempt makes a single reachability check: a protocol probe when one is
// registered for the dependency, a plain TCP connect otherwise. Each TCP
// attempt is bounded by the poll interval.
func (o *Orchestrator) attempt(ctx context.Context, dep Dependency) error {
	if dep.Scheme != "tcp" {
		if p, ok := o.probers[dep.Name]; ok {
			res := p.Probe(ctx)
			if !res.OK {
				return errors.New(res.Error)
			}
			return nil
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.policy.Interval)
	defer cancel()

	conn, err := o.dial(dialCtx, "tcp", dep.Target())
	if err != nil {
		return err
	}
	return conn.Close()
}
