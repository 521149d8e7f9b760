package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultMigrationsDir    = "./migrations"
	DefaultConnectTimeout   = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultClaimLease       = 2 * time.Minute
	DefaultClaimWait        = 30 * time.Second
	DefaultFormat           = "text"
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	MigrationsDir    string
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
	ClaimLease       time.Duration
	ClaimWait        time.Duration
	Format           string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	MigrationsDir    string `yaml:"migrations_dir"`
	ConnectTimeout   string `yaml:"connect_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	ClaimLease       string `yaml:"claim_lease"`
	ClaimWait        string `yaml:"claim_wait"`
	Format           string `yaml:"format"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		MigrationsDir:    DefaultMigrationsDir,
		ConnectTimeout:   DefaultConnectTimeout,
		StatementTimeout: DefaultStatementTimeout,
		ClaimLease:       DefaultClaimLease,
		ClaimWait:        DefaultClaimWait,
		Format:           DefaultFormat,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.DatabaseURL != "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}

	if raw.MigrationsDir != "" {
		cfg.MigrationsDir = raw.MigrationsDir
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"statement_timeout", raw.StatementTimeout, &cfg.StatementTimeout},
		{"claim_lease", raw.ClaimLease, &cfg.ClaimLease},
		{"claim_wait", raw.ClaimWait, &cfg.ClaimWait},
	}

	for _, entry := range durations {
		if entry.value == "" {
			continue
		}

		d, err := time.ParseDuration(entry.value)
		if err != nil {
			return nil, fmt.Errorf("parsing %s %q: %w", entry.field, entry.value, err)
		}

		*entry.dst = d
	}

	if raw.Format != "" {
		cfg.Format = raw.Format
	}

	return cfg, nil
}

// MergeEnv overrides config fields from BOOTSTRAP_* environment variables.
func MergeEnv(cfg *Config) {
	if v := os.Getenv("BOOTSTRAP_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	if v := os.Getenv("BOOTSTRAP_MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}

	envDurations := []struct {
		name string
		dst  *time.Duration
	}{
		{"BOOTSTRAP_CONNECT_TIMEOUT", &cfg.ConnectTimeout},
		{"BOOTSTRAP_STATEMENT_TIMEOUT", &cfg.StatementTimeout},
		{"BOOTSTRAP_CLAIM_LEASE", &cfg.ClaimLease},
		{"BOOTSTRAP_CLAIM_WAIT", &cfg.ClaimWait},
	}

	for _, entry := range envDurations {
		if v := os.Getenv(entry.name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*entry.dst = d
			}
		}
	}
}
