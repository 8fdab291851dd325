package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when no config path
// is given explicitly.
const EnvConfigPath = "TOOLBRIDGE_CONFIG"

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
// Bare integers are taken as nanoseconds, matching time.Duration itself.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SpecConfig points at one API descriptor and the server its operations are
// dispatched against.
type SpecConfig struct {
	// URL is a filesystem path or http(s) URL to the descriptor document.
	URL string `yaml:"url" validate:"required"`
	// ServerURL is the base URL requests are sent to.
	ServerURL string `yaml:"serverUrl" validate:"required,url"`
	// APIKey is an optional secret sent under the descriptor's apiKey
	// security header.
	APIKey string `yaml:"apiKey"`
}

// HTTPConfig bounds outbound dispatch behavior.
type HTTPConfig struct {
	// CallTimeout bounds each invocation; a timeout surfaces as an error-text
	// result, never a fault.
	CallTimeout Duration `yaml:"callTimeout" validate:"gte=0"`
	// MaxResponseLog truncates response bodies in logs. The returned result
	// is never truncated.
	MaxResponseLog int `yaml:"maxResponseLog" validate:"gte=0"`
}

// LogConfig selects logger verbosity.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// MetricsConfig optionally exposes Prometheus metrics over HTTP.
type MetricsConfig struct {
	// Addr is a listen address like ":9090"; empty disables the listener.
	Addr string `yaml:"addr"`
}

// Config is the full configuration surface. At least one spec entry is
// mandatory; startup fails fatally otherwise rather than serving a partial
// registry.
type Config struct {
	Specs   map[string]SpecConfig `yaml:"specs" validate:"required,min=1,dive"`
	HTTP    HTTPConfig            `yaml:"http"`
	Log     LogConfig             `yaml:"log"`
	Metrics MetricsConfig         `yaml:"metrics"`
}

// Default returns the configuration applied before file values.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			CallTimeout:    Duration(30 * time.Second),
			MaxResponseLog: 256 * 1024,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads, merges, and validates configuration from path. An empty path
// falls back to the TOOLBRIDGE_CONFIG environment variable.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file given (flag --config or %s)", EnvConfigPath)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate enforces the configuration contract.
func (c *Config) Validate() error {
	if len(c.Specs) == 0 {
		return fmt.Errorf("no API descriptors configured under 'specs'")
	}
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return nil
}

// SortedSpecKeys returns spec keys in the registry's iteration order.
func (c *Config) SortedSpecKeys() []string {
	keys := make([]string, 0, len(c.Specs))
	for k := range c.Specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
