package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NODE_URL", "http://localhost:8545")
	cfg := Load()

	assert.Equal(t, "http://localhost:8545", cfg.Node.URL)
	assert.Equal(t, 10*time.Second, cfg.Node.Timeout)
	assert.Equal(t, 0, cfg.Node.RetryMax)
	assert.Equal(t, "extools", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.OtelSampleRatio)
	assert.Len(t, cfg.Providers, len(ProviderNames))
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProviderEnv(t *testing.T) {
	t.Setenv("API_KEYS", `{"dextools":"from-json","coingecko":"cg"}`)
	t.Setenv("DEXTOOLS_API_KEY", "from-env")
	t.Setenv("DEXSCREENER_RPM", "120")
	t.Setenv("REQUEST_TIMEOUT", "3s")

	cfg := Load()

	assert.Equal(t, "from-env", cfg.Providers[DexTools].APIKey)
	assert.Equal(t, "cg", cfg.Providers[CoinGecko].APIKey)
	assert.Equal(t, 120.0, cfg.Providers[DexScreener].RequestsPerMinute)
	assert.Equal(t, 3*time.Second, cfg.Provider(GeckoTerminal).Timeout)
}

func TestLoadFile_Overlay(t *testing.T) {
	t.Setenv("NODE_URL", "http://env-node:8545")
	t.Setenv("TEST_DEXTOOLS_KEY", "secret")
	t.Setenv("COINGECKO_RPM", "10")

	path := filepath.Join(t.TempDir(), "extools.yaml")
	content := `
node:
  url: https://file-node.example
  timeout: 2s
providers:
  DexTools:
    api_key: ${TEST_DEXTOOLS_KEY}
  coingecko:
    base_url: https://pro-api.coingecko.com
log:
  level: debug
otel:
  endpoint: https://collector.example/v1/traces
  sample_ratio: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://file-node.example", cfg.Node.URL)
	assert.Equal(t, 2*time.Second, cfg.Node.Timeout)
	assert.Equal(t, "secret", cfg.Providers[DexTools].APIKey)
	assert.Equal(t, "https://pro-api.coingecko.com", cfg.Providers[CoinGecko].BaseURL)
	// env value survives when the file leaves the field unset
	assert.Equal(t, 10.0, cfg.Providers[CoinGecko].RequestsPerMinute)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://collector.example/v1/traces", cfg.OtelEndpoint)
	assert.Equal(t, 0.0, cfg.OtelSampleRatio)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node:\n  url: ftp://nope\n"), 0o600))
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "node.url")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty node url", func(c *Config) { c.Node.URL = "" }, true},
		{"no host", func(c *Config) { c.Node.URL = "http://" }, true},
		{"negative retries", func(c *Config) { c.Node.RetryMax = -1 }, true},
		{"negative rpm", func(c *Config) { c.Providers[DexTools] = ProviderConfig{RequestsPerMinute: -1} }, true},
		{"bad provider url", func(c *Config) { c.Providers[CryptoAPI] = ProviderConfig{BaseURL: "127.0.0.1:9876"} }, true},
		{"negative redis db", func(c *Config) { c.Redis.DB = -2 }, true},
		{"sample ratio above one", func(c *Config) { c.OtelSampleRatio = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Node:      NodeConfig{URL: "http://127.0.0.1:8545"},
				Providers: map[string]ProviderConfig{},
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXTOOLS_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("EXTOOLS_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("EXTOOLS_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("EXTOOLS_INT", "7")
	t.Setenv("EXTOOLS_BAD_INT", "seven")
	t.Setenv("EXTOOLS_DUR", "250ms")

	assert.Equal(t, 7, GetEnvAsInt("EXTOOLS_INT", 1))
	assert.Equal(t, 1, GetEnvAsInt("EXTOOLS_BAD_INT", 1))
	assert.Equal(t, 250*time.Millisecond, GetEnvAsDuration("EXTOOLS_DUR", time.Second))
	assert.Equal(t, "fallback", GetEnvOrDefault("EXTOOLS_UNSET_VAR", "fallback"))
}
