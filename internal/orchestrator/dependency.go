package orchestrator

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Default ports for targets given as scheme URLs without an explicit port.
// A zero default means the port is required.
var schemeDefaultPorts = map[string]int{
	"tcp":      0,
	"postgres": 5432,
	"redis":    6379,
	"nats":     4222,
	"http":     80,
	"https":    443,
}

// Dependency is one startup dependency to wait on. Scheme selects the
// reachability check: "tcp" is a plain connect, everything else goes
// through the matching protocol probe when one is registered.
type Dependency struct {
	Name   string
	Scheme string
	Host   string
	Port   int
	URL    string
}

// Target returns the host:port dial address.
func (d Dependency) Target() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// ParseDependency parses a single wait target. Accepted forms:
//
//	host:port                                 plain TCP connect
//	scheme://[user:pass@]host[:port][/path]   protocol-level probe
//
// Supported schemes: tcp, postgres, redis, nats, http, https.
func ParseDependency(target string) (Dependency, error) {
	if !strings.Contains(target, "://") {
		host, portStr, err := net.SplitHostPort(target)
		if err != nil {
			return Dependency{}, fmt.Errorf("wait target %q: %w", target, err)
		}
		port, err := parsePort(portStr)
		if err != nil {
			return Dependency{}, fmt.Errorf("wait target %q: %w", target, err)
		}
		return Dependency{Name: host, Scheme: "tcp", Host: host, Port: port, URL: target}, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return Dependency{}, fmt.Errorf("wait target %q: %w", target, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "postgresql" {
		scheme = "postgres"
	}
	defaultPort, ok := schemeDefaultPorts[scheme]
	if !ok {
		return Dependency{}, fmt.Errorf("wait target %q: unsupported scheme %q", target, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Dependency{}, fmt.Errorf("wait target %q: missing host", target)
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = parsePort(p)
		if err != nil {
			return Dependency{}, fmt.Errorf("wait target %q: %w", target, err)
		}
	}
	if port == 0 {
		return Dependency{}, fmt.Errorf("wait target %q: port required", target)
	}

	return Dependency{Name: host, Scheme: scheme, Host: host, Port: port, URL: target}, nil
}

// ParseDependencies parses every wait target, failing on the first bad one.
func ParseDependencies(targets []string) ([]Dependency, error) {
	deps := make([]Dependency, 0, len(targets))
	for _, t := range targets {
		dep, err := ParseDependency(t)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
