package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Escalation policies for dependencies that never become reachable.
const (
	OnTimeoutContinue = "continue"
	OnTimeoutAbort    = "abort"
)

// Launch strategies for the final hand-off to the selected mode's command.
const (
	StrategyReplace   = "replace"
	StrategySupervise = "supervise"
)

// Config is the root configuration for the tecken entrypoint.
type Config struct {
	Port        int             `mapstructure:"port"`
	VersionFile string          `mapstructure:"version_file"`
	Wait        WaitConfig      `mapstructure:"wait"`
	Check       CheckConfig     `mapstructure:"check"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Deps        DepsConfig      `mapstructure:"deps"`
	Commands    CommandsConfig  `mapstructure:"commands"`
	Exec        ExecConfig      `mapstructure:"exec"`

	// Runtime holds presence-based signals snapshotted once at load time.
	Runtime RuntimeConfig `mapstructure:"-"`
}

// WaitConfig controls the dependency readiness phase.
type WaitConfig struct {
	// Targets is a comma-separated list of wait targets. Each entry is
	// either host:port (plain TCP) or a scheme URL such as
	// redis://redis-store:6379/0 for a protocol-level probe.
	Targets      string  `mapstructure:"targets"`
	SleepSeconds float64 `mapstructure:"sleep"`
	Tries        int     `mapstructure:"tries"`
	OnTimeout    string  `mapstructure:"on_timeout"`
	Parallel     bool    `mapstructure:"parallel"`
}

// Interval returns the poll interval between connection attempts.
func (w WaitConfig) Interval() time.Duration {
	return time.Duration(w.SleepSeconds * float64(time.Second))
}

// TargetList splits Targets on commas, dropping empty entries.
func (w WaitConfig) TargetList() []string {
	var out []string
	for _, t := range strings.Split(w.Targets, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type CheckConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	UseJSON bool   `mapstructure:"use_json"`
	// File, when set, receives a copy of every log record in addition
	// to stdout.
	File string `mapstructure:"file"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
}

type DepsConfig struct {
	Postgres   PostgresConfig `mapstructure:"postgres"`
	RedisCache RedisConfig    `mapstructure:"redis_cache"`
	RedisStore RedisConfig    `mapstructure:"redis_store"`
	Broker     BrokerConfig   `mapstructure:"broker"`
	Storage    StorageConfig  `mapstructure:"storage"`
}

type PostgresConfig struct {
	URL             string `mapstructure:"url"`
	MigrationsTable string `mapstructure:"migrations_table"`
	MaxConns        int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// BrokerConfig points at an optional NATS broker. Empty means no broker
// check; the default deployment brokers through the cache Redis instead.
type BrokerConfig struct {
	URL string `mapstructure:"url"`
}

type StorageConfig struct {
	URL string `mapstructure:"url"`
}

// CommandsConfig holds the external program invocations for every run mode.
// Entries are argv vectors; the literal {port} expands to the configured
// port at dispatch time.
type CommandsConfig struct {
	Migrate  []string `mapstructure:"migrate"`
	Serve    []string `mapstructure:"serve"`
	ServeDev []string `mapstructure:"serve_dev"`
	// WorkerWrapper is prepended to Worker; clear it to run the worker
	// without the monitoring agent.
	WorkerWrapper []string `mapstructure:"worker_wrapper"`
	Worker        []string `mapstructure:"worker"`
	Shell         []string `mapstructure:"shell"`

	CoverageErase  []string `mapstructure:"coverage_erase"`
	CoverageRun    []string `mapstructure:"coverage_run"`
	CoverageReport []string `mapstructure:"coverage_report"`
	CoverageHTML   []string `mapstructure:"coverage_html"`
	CoverageXML    []string `mapstructure:"coverage_xml"`
	CoverageUpload []string `mapstructure:"coverage_upload"`
}

type ExecConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// RuntimeConfig carries the presence-based environment signals. Their
// values are irrelevant; DEVELOPMENT= and CI= both count as set.
type RuntimeConfig struct {
	Development bool
	CI          bool
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables. Hardened settings use the TECKEN_ prefix (e.g.
// TECKEN_WAIT_TARGETS); the historical container contract keeps its exact
// unprefixed names (PORT, SLEEP, TRIES, DATABASE_URL, REDIS_URL,
// REDIS_STORE_URL, LOGGING_USE_JSON).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TECKEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	_, cfg.Runtime.Development = os.LookupEnv("DEVELOPMENT")
	_, cfg.Runtime.CI = os.LookupEnv("CI")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindLegacyEnv maps the unprefixed environment names the container contract
// has always used onto their config keys.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"port":                 "PORT",
		"wait.sleep":           "SLEEP",
		"wait.tries":           "TRIES",
		"logging.use_json":     "LOGGING_USE_JSON",
		"deps.postgres.url":    "DATABASE_URL",
		"deps.redis_cache.url": "REDIS_URL",
		"deps.redis_store.url": "REDIS_STORE_URL",
	}
	for key, env := range legacy {
		// BindEnv only errors on an empty key.
		_ = v.BindEnv(key, env)
	}
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.Wait.SleepSeconds <= 0 {
		return fmt.Errorf("wait sleep must be positive, got %v", c.Wait.SleepSeconds)
	}
	if c.Wait.Tries < 1 {
		return fmt.Errorf("wait tries must be at least 1, got %d", c.Wait.Tries)
	}
	switch c.Wait.OnTimeout {
	case OnTimeoutContinue, OnTimeoutAbort:
	default:
		return fmt.Errorf("wait on_timeout must be %q or %q, got %q",
			OnTimeoutContinue, OnTimeoutAbort, c.Wait.OnTimeout)
	}
	switch c.Exec.Strategy {
	case StrategyReplace, StrategySupervise:
	default:
		return fmt.Errorf("exec strategy must be %q or %q, got %q",
			StrategyReplace, StrategySupervise, c.Exec.Strategy)
	}

	required := map[string][]string{
		"commands.migrate":         c.Commands.Migrate,
		"commands.serve":           c.Commands.Serve,
		"commands.serve_dev":       c.Commands.ServeDev,
		"commands.worker":          c.Commands.Worker,
		"commands.shell":           c.Commands.Shell,
		"commands.coverage_erase":  c.Commands.CoverageErase,
		"commands.coverage_run":    c.Commands.CoverageRun,
		"commands.coverage_report": c.Commands.CoverageReport,
		"commands.coverage_html":   c.Commands.CoverageHTML,
		"commands.coverage_xml":    c.Commands.CoverageXML,
		"commands.coverage_upload": c.Commands.CoverageUpload,
	}
	for key, argv := range required {
		if len(argv) == 0 {
			return fmt.Errorf("%s must not be empty", key)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8000)
	v.SetDefault("version_file", "/app/version.json")

	v.SetDefault("wait.targets", "db:5432,redis-cache:6379,redis-store:6379")
	v.SetDefault("wait.sleep", 1.0)
	v.SetDefault("wait.tries", 60)
	v.SetDefault("wait.on_timeout", OnTimeoutContinue)
	v.SetDefault("wait.parallel", false)

	v.SetDefault("check.timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.use_json", true)
	v.SetDefault("logging.file", "")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "tecken-run")

	v.SetDefault("deps.postgres.url", "postgres://postgres:postgres@db:5432/tecken?sslmode=disable")
	v.SetDefault("deps.postgres.migrations_table", "django_migrations")
	v.SetDefault("deps.postgres.max_conns", 2)
	v.SetDefault("deps.redis_cache.url", "redis://redis-cache:6379/0")
	v.SetDefault("deps.redis_store.url", "redis://redis-store:6379/0")
	v.SetDefault("deps.broker.url", "")
	v.SetDefault("deps.storage.url", "http://localstack-s3:4572")

	v.SetDefault("exec.strategy", StrategyReplace)

	v.SetDefault("commands.migrate", []string{"python", "manage.py", "migrate", "--noinput"})
	v.SetDefault("commands.serve", []string{
		"gunicorn", "tecken.wsgi:application",
		"-b", "0.0.0.0:{port}",
		"--workers", "4",
		"--access-logfile", "-",
	})
	v.SetDefault("commands.serve_dev", []string{"python", "manage.py", "runserver", "0.0.0.0:{port}"})
	v.SetDefault("commands.worker_wrapper", []string{"newrelic-admin", "run-program"})
	v.SetDefault("commands.worker", []string{"celery", "-A", "tecken.celery:app", "worker", "-l", "info"})
	v.SetDefault("commands.shell", []string{"/bin/bash"})

	v.SetDefault("commands.coverage_erase", []string{"coverage", "erase"})
	v.SetDefault("commands.coverage_run", []string{"coverage", "run", "-m", "pytest"})
	v.SetDefault("commands.coverage_report", []string{"coverage", "report", "-m"})
	v.SetDefault("commands.coverage_html", []string{"coverage", "html", "--skip-covered"})
	v.SetDefault("commands.coverage_xml", []string{"coverage", "xml"})
	v.SetDefault("commands.coverage_upload", []string{"codecov", "-f", "coverage.xml"})
}
