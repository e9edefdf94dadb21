package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/g-k/tecken/internal/config"
	"github.com/g-k/tecken/internal/orchestrator"
)

// dbPinger abstracts the pgxpool.Pool methods used in Probe so that tests
// can inject a fake without standing up a real database.
type dbPinger interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresClient wraps a pgx connection pool with a circuit breaker.
type PostgresClient struct {
	name    string
	cfg     config.PostgresConfig
	cb      *gobreaker.CircuitBreaker
	connect func(ctx context.Context, cfg config.PostgresConfig) (dbPinger, error)
}

// NewPostgresClient creates a PostgresClient that lazily opens a pgx pool on
// the first call to Probe. The circuit breaker is applied around each probe
// attempt. No connection is made at construction time.
func NewPostgresClient(name string, cfg config.PostgresConfig, cb *gobreaker.CircuitBreaker) *PostgresClient {
	return &PostgresClient{
		name:    name,
		cfg:     cfg,
		cb:      cb,
		connect: realConnect,
	}
}

// Probe pings the Postgres server and verifies the migrations table exists
// in the public schema, which distinguishes a reachable database from a
// migrated one. It wraps the check in the circuit breaker so that
// persistent failures trip the breaker after three consecutive errors.
func (c *PostgresClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		pool, err := c.connect(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}

		var exists int
		row := pool.QueryRow(ctx,
			"SELECT 1 FROM information_schema.tables WHERE table_schema='public' AND table_name=$1",
			c.cfg.MigrationsTable,
		)
		if err := row.Scan(&exists); err != nil {
			return nil, fmt.Errorf("migrations table %s not found: %w", c.cfg.MigrationsTable, err)
		}

		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return orchestrator.ProbeResult{
			Name:      c.name,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return orchestrator.ProbeResult{
		Name:      c.name,
		OK:        true,
		LatencyMs: latency,
	}
}

// realConnect opens a pgxpool.Pool from the configured connection URL.
func realConnect(ctx context.Context, cfg config.PostgresConfig) (dbPinger, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	return pool, nil
}
