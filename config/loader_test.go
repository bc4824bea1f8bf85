// Configuration loader and defaults tests.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Default config ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "catalog.json", cfg.Gateway.CatalogPath)
	assert.Equal(t, 5*time.Second, cfg.Gateway.CatalogPollInterval)
	assert.Equal(t, 0.0, cfg.Gateway.DefaultBudgetLimit)
	assert.Equal(t, 0.8, cfg.Gateway.DefaultAlertThreshold)
	assert.Equal(t, 1000, cfg.Gateway.CacheCapacity)
	assert.Equal(t, 10*time.Minute, cfg.Gateway.CacheTTL)
	assert.Equal(t, 3, cfg.Gateway.RetryMaxAttempts)
	assert.Equal(t, 3, cfg.Gateway.ChainLength)
	assert.Equal(t, "cost", cfg.Gateway.DefaultStrategy)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "agentflow-gateway", cfg.Telemetry.ServiceName)
}

// --- Loader ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "catalog.json", cfg.Gateway.CatalogPath)
	assert.Equal(t, 3, cfg.Gateway.ChainLength)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
gateway:
  catalog_path: "custom-catalog.json"
  chain_length: 5
  default_strategy: "quality"

providers:
  openai:
    base_url: "https://proxy.example.com/v1"
    timeout: 45s

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-catalog.json", cfg.Gateway.CatalogPath)
	assert.Equal(t, 5, cfg.Gateway.ChainLength)
	assert.Equal(t, "quality", cfg.Gateway.DefaultStrategy)

	require.Contains(t, cfg.Providers, "openai")
	assert.Equal(t, "https://proxy.example.com/v1", cfg.Providers["openai"].BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Providers["openai"].Timeout)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"AGENTGW_GATEWAY_CATALOG_PATH":    "env-catalog.json",
		"AGENTGW_GATEWAY_CHAIN_LENGTH":    "7",
		"AGENTGW_GATEWAY_DEFAULT_STRATEGY": "latency",
		"AGENTGW_LOG_LEVEL":               "warn",
	}
	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "env-catalog.json", cfg.Gateway.CatalogPath)
	assert.Equal(t, 7, cfg.Gateway.ChainLength)
	assert.Equal(t, "latency", cfg.Gateway.DefaultStrategy)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
gateway:
  catalog_path: "yaml-catalog.json"
  default_strategy: "cost"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	os.Setenv("AGENTGW_GATEWAY_CATALOG_PATH", "env-catalog.json")
	defer os.Unsetenv("AGENTGW_GATEWAY_CATALOG_PATH")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "env-catalog.json", cfg.Gateway.CatalogPath)
	// YAML value survives when no env var overrides it.
	assert.Equal(t, "cost", cfg.Gateway.DefaultStrategy)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	os.Setenv("MYAPP_GATEWAY_CATALOG_PATH", "custom-prefix-catalog.json")
	defer os.Unsetenv("MYAPP_GATEWAY_CATALOG_PATH")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-prefix-catalog.json", cfg.Gateway.CatalogPath)
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Gateway.ChainLength < 1 {
			return assert.AnError
		}
		return nil
	}

	os.Setenv("AGENTGW_GATEWAY_CHAIN_LENGTH", "0")
	defer os.Unsetenv("AGENTGW_GATEWAY_CHAIN_LENGTH")

	_, err := NewLoader().WithValidator(validator).Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "catalog.json", cfg.Gateway.CatalogPath)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
gateway:
  chain_length: [invalid
  this is not valid yaml
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	_, err = NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Config.Validate ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}, wantErr: false},
		{name: "negative cache capacity", modify: func(c *Config) { c.Gateway.CacheCapacity = -1 }, wantErr: true},
		{name: "negative retry attempts", modify: func(c *Config) { c.Gateway.RetryMaxAttempts = -1 }, wantErr: true},
		{name: "alert threshold too high", modify: func(c *Config) { c.Gateway.DefaultAlertThreshold = 1.5 }, wantErr: true},
		{name: "zero chain length", modify: func(c *Config) { c.Gateway.ChainLength = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- MustLoad ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
gateway:
  chain_length: 4
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 4, cfg.Gateway.ChainLength)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(configPath, []byte("invalid: [yaml"), 0644)
	require.NoError(t, err)

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	os.Setenv("AGENTGW_GATEWAY_DEFAULT_STRATEGY", "hybrid")
	defer os.Unsetenv("AGENTGW_GATEWAY_DEFAULT_STRATEGY")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "hybrid", cfg.Gateway.DefaultStrategy)
}
