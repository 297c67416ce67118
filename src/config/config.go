// Package config provides configuration management for buildwatch.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPollInterval is used when no interval is configured.
	DefaultPollInterval = 30 * time.Second

	// DefaultPageSize is how many of the user's builds are requested per poll.
	DefaultPageSize = 30

	// MaxPageSize is the largest page the Buildkite builds endpoints return.
	MaxPageSize = 100
)

// AllowedPollIntervals are the polling periods a user may choose from.
var AllowedPollIntervals = []time.Duration{
	15 * time.Second,
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
}

// Config holds the application configuration.
type Config struct {
	// BuildkiteAPIToken is the API token for authenticating with Buildkite.
	BuildkiteAPIToken string `yaml:"api_token"`
	// Organization is the Buildkite organization slug to watch.
	Organization string `yaml:"organization"`

	PollInterval time.Duration `yaml:"poll_interval"`
	PageSize     int           `yaml:"page_size"`

	// Watch lists build URLs to track manually on startup.
	Watch []string `yaml:"watch"`
	// NotifyStates limits notifications to transitions into these states.
	// Empty announces every transition.
	NotifyStates []string `yaml:"notify_states"`

	// Brokers are Redpanda/Kafka seed addresses; empty uses the in-memory broker.
	Brokers []string `yaml:"brokers"`
	// StoreDSN selects the history store: postgres://..., a SQLite path, or memory:.
	StoreDSN    string `yaml:"store_dsn"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogFile     string `yaml:"log_file"`
}

// Default returns a configuration with defaults applied and no credentials.
func Default() *Config {
	return &Config{
		PollInterval: DefaultPollInterval,
		PageSize:     DefaultPageSize,
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.BuildkiteAPIToken == "" {
		return nil, fmt.Errorf("BUILDKITE_API_TOKEN environment variable is required")
	}
	return cfg, nil
}

// MustLoadFromEnv loads configuration from environment variables and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoadFromEnv() *Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Load reads a YAML config file, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPaths lists the config locations LoadDefault searches, in order.
func DefaultPaths() []string {
	candidates := []string{"buildwatch.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".buildwatch", "config.yaml"))
	}
	return candidates
}

// LoadDefault loads the first config file found in DefaultPaths, falling
// back to the environment alone when there is none.
func LoadDefault() (*Config, error) {
	for _, path := range DefaultPaths() {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BUILDKITE_API_TOKEN"); v != "" {
		c.BuildkiteAPIToken = v
	}
	if v := os.Getenv("BUILDKITE_ORG"); v != "" {
		c.Organization = v
	}
	if v := os.Getenv("BUILDWATCH_POLL_INTERVAL"); v != "" {
		d, err := ParsePollInterval(v)
		if err != nil {
			return fmt.Errorf("BUILDWATCH_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	if v := os.Getenv("BUILDWATCH_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BUILDWATCH_PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("REDPANDA_BROKERS"); v != "" {
		c.Brokers = splitList(v)
	}
	if v := os.Getenv("BUILDWATCH_STORE_DSN"); v != "" {
		c.StoreDSN = v
	}
	if v := os.Getenv("BUILDWATCH_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("BUILDWATCH_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	return nil
}

// Validate checks that the configuration can start monitoring.
func (c *Config) Validate() error {
	var errs []error
	if c.BuildkiteAPIToken == "" {
		errs = append(errs, errors.New("api token is required (BUILDKITE_API_TOKEN)"))
	}
	if c.Organization == "" {
		errs = append(errs, errors.New("organization is required (BUILDKITE_ORG or --org)"))
	}
	if err := ValidatePollInterval(c.PollInterval); err != nil {
		errs = append(errs, err)
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("page size %d out of range 1..%d", c.PageSize, MaxPageSize))
	}
	return errors.Join(errs...)
}

// ValidatePollInterval reports whether d is one of AllowedPollIntervals.
func ValidatePollInterval(d time.Duration) error {
	for _, allowed := range AllowedPollIntervals {
		if d == allowed {
			return nil
		}
	}
	return fmt.Errorf("poll interval %s not allowed (choose one of %s)", d, formatIntervals())
}

// ParsePollInterval accepts "30s"-style durations or a bare number of seconds.
func ParsePollInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	d, err := time.ParseDuration(s)
	if err != nil {
		secs, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, fmt.Errorf("invalid poll interval %q", s)
		}
		d = time.Duration(secs) * time.Second
	}
	if err := ValidatePollInterval(d); err != nil {
		return 0, err
	}
	return d, nil
}

func formatIntervals() string {
	parts := make([]string, len(AllowedPollIntervals))
	for i, d := range AllowedPollIntervals {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
