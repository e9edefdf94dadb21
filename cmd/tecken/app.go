package main

import (
	"context"
	"log/slog"

	"github.com/g-k/tecken/internal/clients"
	"github.com/g-k/tecken/internal/config"
	"github.com/g-k/tecken/internal/dispatch"
	"github.com/g-k/tecken/internal/launcher"
	"github.com/g-k/tecken/internal/orchestrator"
	"github.com/g-k/tecken/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE and referenced by
// run.go and check.go.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	orchestrator *orchestrator.Orchestrator
	dispatcher   *dispatch.Dispatcher
	deps         []orchestrator.Dependency
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Parses the wait targets
//  3. Creates one circuit breaker per probe client
//  4. Creates the orchestrator, launcher, and dispatcher
func buildAppContext(cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// OTEL is best-effort: a missing collector must never block startup.
	// When OTLPEndpoint is empty, telemetry is disabled entirely, which
	// avoids the SDK's periodic-reader noise when no collector runs locally.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Info("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			context.Background(),
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	deps, err := orchestrator.ParseDependencies(cfg.Wait.TargetList())
	if err != nil {
		return nil, err
	}
	app.deps = deps

	app.orchestrator = orchestrator.New(
		orchestrator.RetryPolicy{Interval: cfg.Wait.Interval(), MaxAttempts: cfg.Wait.Tries},
		cfg.Wait.Parallel,
		buildProbers(cfg, deps),
	)

	l := launcher.NewProcessLauncher(cfg.Exec.Strategy)
	app.dispatcher = dispatch.New(cfg, app.orchestrator, deps, l)

	return app, nil
}

// buildProbers wires one probe client per configured dependency, plus one
// for any wait target whose scheme names a protocol we can probe at depth.
// Plain host:port targets stay on the breakerless TCP path. One circuit
// breaker per client so each dependency trips independently.
func buildProbers(cfg *config.Config, deps []orchestrator.Dependency) map[string]orchestrator.Prober {
	probers := map[string]orchestrator.Prober{
		"postgres": clients.NewPostgresClient("postgres", cfg.Deps.Postgres,
			clients.NewCircuitBreaker("postgres")),
		"redis-cache": clients.NewRedisClient("redis-cache", cfg.Deps.RedisCache,
			clients.NewCircuitBreaker("redis-cache")),
		"redis-store": clients.NewRedisClient("redis-store", cfg.Deps.RedisStore,
			clients.NewCircuitBreaker("redis-store")),
		"storage": clients.NewHTTPClient("storage", cfg.Deps.Storage.URL,
			clients.NewCircuitBreaker("storage")),
	}
	if cfg.Deps.Broker.URL != "" {
		probers["broker"] = clients.NewNATSClient("broker", cfg.Deps.Broker,
			clients.NewCircuitBreaker("broker"))
	}

	for _, dep := range deps {
		if dep.Scheme == "tcp" {
			continue
		}
		if _, ok := probers[dep.Name]; ok {
			continue
		}
		cb := clients.NewCircuitBreaker(dep.Name)
		switch dep.Scheme {
		case "postgres":
			probers[dep.Name] = clients.NewPostgresClient(dep.Name, config.PostgresConfig{
				URL:             dep.URL,
				MigrationsTable: cfg.Deps.Postgres.MigrationsTable,
				MaxConns:        cfg.Deps.Postgres.MaxConns,
			}, cb)
		case "redis":
			probers[dep.Name] = clients.NewRedisClient(dep.Name, config.RedisConfig{URL: dep.URL}, cb)
		case "nats":
			probers[dep.Name] = clients.NewNATSClient(dep.Name, config.BrokerConfig{URL: dep.URL}, cb)
		case "http", "https":
			probers[dep.Name] = clients.NewHTTPClient(dep.Name, dep.URL, cb)
		}
	}

	return probers
}
