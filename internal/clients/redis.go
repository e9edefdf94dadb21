package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/g-k/tecken/internal/config"
	"github.com/g-k/tecken/internal/orchestrator"
)

// redisPinger is the interface used by RedisClient for health probing.
// It is implemented by the real go-redis client and by test doubles.
type redisPinger interface {
	PingResult(ctx context.Context) (string, error)
	Close() error
}

// realRedisPinger wraps a *redis.Client and adapts it to the redisPinger
// interface. The wrapper exists so tests can inject a fake without needing to
// construct a real *redis.StatusCmd.
type realRedisPinger struct {
	client *redis.Client
}

func (r *realRedisPinger) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisPinger) Close() error {
	return r.client.Close()
}

// RedisClient wraps a go-redis connection with a circuit breaker and exposes a
// Probe method for readiness / health checks. The same type serves both Redis
// instances, the cache and the symbol download store, under different names.
type RedisClient struct {
	name   string
	cfg    config.RedisConfig
	cb     *gobreaker.CircuitBreaker
	pinger redisPinger
}

// NewRedisClient creates a RedisClient. No connection is opened at construction
// time; the real go-redis client is built lazily on the first Probe call.
func NewRedisClient(name string, cfg config.RedisConfig, cb *gobreaker.CircuitBreaker) *RedisClient {
	return &RedisClient{
		name: name,
		cfg:  cfg,
		cb:   cb,
	}
}

// Probe sends a PING command to Redis and validates the PONG response. The call
// is wrapped in the circuit breaker; after 3 consecutive failures the breaker
// opens and subsequent calls return immediately with "circuit open".
func (c *RedisClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		p := c.pinger
		if p == nil {
			opts, err := redis.ParseURL(c.cfg.URL)
			if err != nil {
				return nil, fmt.Errorf("parsing redis URL: %w", err)
			}
			p = &realRedisPinger{client: redis.NewClient(opts)}
			defer p.Close() //nolint:errcheck
		}

		val, err := p.PingResult(ctx)
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
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
