// =============================================================================
// Gateway default configuration
// =============================================================================
// Reasonable defaults for every configuration item.
// =============================================================================
package config

import "time"

// DefaultConfig returns the gateway's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Gateway:   DefaultGatewayConfig(),
		Providers: map[string]ProviderConfig{},
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultGatewayConfig returns the request core's default tunables.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		CatalogPath:           "catalog.json",
		CatalogPollInterval:   5 * time.Second,
		DefaultBudgetLimit:    0,
		DefaultAlertThreshold: 0.8,
		CacheCapacity:         1000,
		CacheTTL:              10 * time.Minute,
		RetryMaxAttempts:      3,
		RetryBaseDelay:        1 * time.Second,
		RetryMaxDelay:         30 * time.Second,
		ChainLength:           3,
		DefaultStrategy:       "cost",
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentflow-gateway",
		SampleRate:   0.1,
	}
}
