// =============================================================================
// Gateway configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment variable override.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("gateway.yaml").
//	    WithEnvPrefix("AGENTGW").
//	    Load()
//
// Priority: defaults -> YAML file -> environment variables.
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Core configuration structure
// =============================================================================

// Config is the gateway's complete runtime configuration.
type Config struct {
	// Gateway holds the request-core's own tunables: catalog location,
	// cache sizing, retry policy defaults, budget defaults.
	Gateway GatewayConfig `yaml:"gateway" env:"GATEWAY"`

	// Providers maps provider_id to per-provider transport overrides
	// (base URL, timeout, client-side rate limit). Entries are optional;
	// a provider absent here uses its strategy's built-in defaults.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Log configures the structured logger every long-lived component
	// derives a scoped logger from.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures OpenTelemetry tracing/metrics export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// GatewayConfig holds the request core's own tunables.
type GatewayConfig struct {
	// CatalogPath is the on-disk JSON catalog document.
	CatalogPath string `yaml:"catalog_path" env:"CATALOG_PATH"`
	// CatalogPollInterval governs how often the catalog source checks
	// the file's mtime for hot-reload.
	CatalogPollInterval time.Duration `yaml:"catalog_poll_interval" env:"CATALOG_POLL_INTERVAL"`

	// DefaultBudgetLimit seeds new sessions with no explicit budget
	// (0 means unlimited).
	DefaultBudgetLimit float64 `yaml:"default_budget_limit" env:"DEFAULT_BUDGET_LIMIT"`
	// DefaultAlertThreshold is the fraction of budget_limit that fires
	// AlertThresholdReached, e.g. 0.8.
	DefaultAlertThreshold float64 `yaml:"default_alert_threshold" env:"DEFAULT_ALERT_THRESHOLD"`

	// CacheCapacity bounds the response cache's entry count.
	CacheCapacity int `yaml:"cache_capacity" env:"CACHE_CAPACITY"`
	// CacheTTL is how long a cached response stays eligible for a hit.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`

	// RetryMaxAttempts is N in "up to N attempts per candidate".
	RetryMaxAttempts int `yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS"`
	// RetryBaseDelay and RetryMaxDelay parameterize the exponential
	// backoff-with-jitter the retry driver applies between attempts.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" env:"RETRY_MAX_DELAY"`

	// ChainLength is K, the number of candidates the router hands the
	// retry driver.
	ChainLength int `yaml:"chain_length" env:"CHAIN_LENGTH"`
	// DefaultStrategy is the router strategy used when a dispatch
	// doesn't specify one: "cost", "quality", "latency", or "hybrid".
	DefaultStrategy string `yaml:"default_strategy" env:"DEFAULT_STRATEGY"`
}

// ProviderConfig is one provider's transport overrides.
type ProviderConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths lists zap sink destinations.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// EnableCaller/EnableStacktrace toggle zap's caller/stacktrace
	// annotation.
	EnableCaller     bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads a Config via the builder pattern.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTGW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a configuration validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads a Config: defaults -> YAML file -> environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv recursively sets struct fields from environment
// variables named <prefix>_<env tag>.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads a Config, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads a Config from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate accumulates human-readable violations in cfg.
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.CacheCapacity < 0 {
		errs = append(errs, "gateway.cache_capacity must be >= 0")
	}
	if c.Gateway.RetryMaxAttempts < 0 {
		errs = append(errs, "gateway.retry_max_attempts must be >= 0")
	}
	if c.Gateway.DefaultAlertThreshold < 0 || c.Gateway.DefaultAlertThreshold > 1 {
		errs = append(errs, "gateway.default_alert_threshold must be in [0,1]")
	}
	if c.Gateway.ChainLength <= 0 {
		errs = append(errs, "gateway.chain_length must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
