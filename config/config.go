// Package config loads the standalone process configuration.
//
// The file is YAML. ${VAR} references are expanded from the environment
// after an optional .env file is loaded, and a few BOND_* variables
// override individual settings. Validation failures are reported as
// *bond.ConfigurationError values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xraph/bond"
)

// Source types.
const (
	SourceSPGroup = "spgroup"
	SourceInflux  = "influx"
)

// Ledger backends.
const (
	LedgerFile   = "file"
	LedgerMemory = "memory"
)

// Remote modes.
const (
	RemoteGateway = "gateway"
	RemoteMemory  = "memory"
)

// Config is the full process configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Remote    RemoteConfig    `yaml:"remote"`
	Retry     RetryConfig     `yaml:"retry"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Items     []ItemConfig    `yaml:"items"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LedgerConfig selects the local ledger backend.
type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// RemoteConfig selects the remote ledger client.
type RemoteConfig struct {
	Mode    string        `yaml:"mode"`
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// RetryConfig tunes the retry policy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Step        time.Duration `yaml:"step"`
}

// TelemetryConfig enables the Kafka publisher when Brokers is set.
type TelemetryConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ItemConfig is one meter.
type ItemConfig struct {
	Name     string       `yaml:"name"`
	Kind     string       `yaml:"kind"`
	Category string       `yaml:"category"`
	Origin   string       `yaml:"origin"`
	Source   SourceConfig `yaml:"source"`
}

// SourceConfig describes where an item reads from. Fields not used by the
// chosen type are ignored.
type SourceConfig struct {
	Type string `yaml:"type"`

	// spgroup
	URL           string `yaml:"url"`
	Site          string `yaml:"site"`
	Authorization string `yaml:"authorization"`

	// influx
	Token       string        `yaml:"token"`
	Org         string        `yaml:"org"`
	Bucket      string        `yaml:"bucket"`
	Measurement string        `yaml:"measurement"`
	Field       string        `yaml:"field"`
	Window      time.Duration `yaml:"window"`
}

// Default returns a configuration with every optional field filled.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Ledger: LedgerConfig{Backend: LedgerFile, Dir: "./ledger"},
		Remote: RemoteConfig{Mode: RemoteGateway, Timeout: 30 * time.Second},
		Retry: RetryConfig{
			MaxAttempts: bond.DefaultRetryPolicy().MaxAttempts,
			Step:        bond.DefaultBackoffStep,
		},
		Telemetry: TelemetryConfig{Topic: "bond.telemetry"},
	}
}

// Load reads path after loading envFiles (".env" when none are given and
// it exists), then applies overrides and validates.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnv(envFiles); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expanding ${VAR} references, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("config: load env: %w", err)
	}
	return nil
}

// applyEnv applies BOND_* overrides.
func (c *Config) applyEnv() error {
	str := map[string]*string{
		"BOND_LOG_LEVEL":      &c.Log.Level,
		"BOND_LOG_FORMAT":     &c.Log.Format,
		"BOND_LEDGER_BACKEND": &c.Ledger.Backend,
		"BOND_LEDGER_DIR":     &c.Ledger.Dir,
		"BOND_REMOTE_MODE":    &c.Remote.Mode,
		"BOND_REMOTE_URL":     &c.Remote.URL,
		"BOND_REMOTE_TOKEN":   &c.Remote.Token,
		"BOND_METRICS_ADDR":   &c.Metrics.Addr,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("BOND_DRY_RUN"); ok {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return &bond.ConfigurationError{Field: "BOND_DRY_RUN", Message: err.Error()}
		}
		if dry {
			c.Remote.Mode = RemoteMemory
		}
	}
	if v, ok := os.LookupEnv("BOND_RETRY_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &bond.ConfigurationError{Field: "BOND_RETRY_MAX_ATTEMPTS", Message: err.Error()}
		}
		c.Retry.MaxAttempts = n
	}
	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs bond.MultiError
	bad := func(field, format string, args ...any) {
		errs.Add(&bond.ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		bad("log.format", "must be text or json, got %q", c.Log.Format)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		bad("log.level", "%v", err)
	}

	switch c.Ledger.Backend {
	case LedgerFile:
		if c.Ledger.Dir == "" {
			bad("ledger.dir", "required for the file backend")
		}
	case LedgerMemory:
	default:
		bad("ledger.backend", "must be file or memory, got %q", c.Ledger.Backend)
	}

	switch c.Remote.Mode {
	case RemoteGateway:
		if c.Remote.URL == "" {
			bad("remote.url", "required in gateway mode")
		}
	case RemoteMemory:
	default:
		bad("remote.mode", "must be gateway or memory, got %q", c.Remote.Mode)
	}

	if c.Retry.MaxAttempts < 1 {
		bad("retry.max_attempts", "must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Step < 0 {
		bad("retry.step", "must not be negative")
	}
	if len(c.Telemetry.Brokers) > 0 && c.Telemetry.Topic == "" {
		bad("telemetry.topic", "required when brokers are set")
	}

	if len(c.Items) == 0 {
		bad("items", "at least one item is required")
	}
	names := make(map[string]bool, len(c.Items))
	for i, item := range c.Items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		if item.Name == "" {
			bad(field("name"), "required")
		} else if names[item.Name] {
			bad(field("name"), "duplicate %q", item.Name)
		}
		names[item.Name] = true

		if !bond.Kind(item.Kind).Valid() {
			bad(field("kind"), "must be production or consumption, got %q", item.Kind)
		}
		if !bond.Category(item.Category).Valid() {
			bad(field("category"), "must be hourly or daily, got %q", item.Category)
		}
		if item.Origin == "" {
			bad(field("origin"), "required")
		}

		src := item.Source
		switch src.Type {
		case SourceSPGroup:
			if src.URL == "" {
				bad(field("source.url"), "required")
			}
			if src.Site == "" {
				bad(field("source.site"), "required")
			}
		case SourceInflux:
			if src.URL == "" {
				bad(field("source.url"), "required")
			}
			if src.Bucket == "" {
				bad(field("source.bucket"), "required")
			}
			if src.Site == "" {
				bad(field("source.site"), "required")
			}
		default:
			bad(field("source.type"), "must be spgroup or influx, got %q", src.Type)
		}
	}

	return errs.ErrOrNil()
}
