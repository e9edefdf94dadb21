package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"github.com/g-k/tecken/internal/config"
	"github.com/g-k/tecken/internal/orchestrator"
)

// natsConn is the subset of *nats.Conn used in Probe. Defining an interface
// here allows test doubles to be injected without a live NATS server.
type natsConn interface {
	Flush() error
	Close()
}

// NATSClient probes an optional message broker. The default deployment has
// no broker configured and never constructs one of these.
type NATSClient struct {
	name    string
	url     string
	cb      *gobreaker.CircuitBreaker
	connect func(url string) (natsConn, error)
}

// NewNATSClient constructs a NATSClient. No connection is made at
// construction time; connections are opened lazily inside Probe.
func NewNATSClient(name string, cfg config.BrokerConfig, cb *gobreaker.CircuitBreaker) *NATSClient {
	return &NATSClient{
		name:    name,
		url:     cfg.URL,
		cb:      cb,
		connect: realNATSConnect,
	}
}

// Probe connects to the broker and flushes a round trip through the server.
// The flush proves the server is answering, not merely accepting TCP
// connections. The call is wrapped in the circuit breaker.
func (c *NATSClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		nc, err := c.connect(c.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		defer nc.Close()

		if err := nc.Flush(); err != nil {
			return nil, fmt.Errorf("flush: %w", err)
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

// realNATSConnect opens a real NATS connection.
func realNATSConnect(url string) (natsConn, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}
