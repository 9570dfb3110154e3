// Package config provides configuration loading for the library and the CLI.
// Values come from the environment (optionally seeded from a .env file) and
// may be overridden by a YAML file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Provider names understood by the fetch package
const (
	DexTools      = "dextools"
	DexScreener   = "dexscreener"
	GeckoTerminal = "geckoterminal"
	CoinGecko     = "coingecko"
	CryptoAPI     = "cryptoapi"
)

// ProviderNames lists every provider in a stable order
var ProviderNames = []string{DexTools, DexScreener, GeckoTerminal, CoinGecko, CryptoAPI}

// Config holds all application configuration
type Config struct {
	ServiceName string

	// JSON-RPC node
	Node NodeConfig

	// Per-provider overrides, keyed by provider name. Zero fields keep the provider defaults.
	Providers map[string]ProviderConfig

	// Timeout applied to provider requests that do not set their own
	RequestTimeout time.Duration

	// Empty Redis.Addr or DatabaseURL disables that store
	Redis       RedisConfig
	DatabaseURL string

	LogLevel  string
	LogFormat string
	LogFile   string

	// OpenTelemetry endpoint for observability, host:port or a full URL
	OtelEndpoint string
	// Share of traces sampled, 0..1
	OtelSampleRatio float64

	// Address for the Prometheus handler; empty disables it
	MetricsAddr string
}

type NodeConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	RetryMax int           `yaml:"retry_max"`
}

type ProviderConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	RequestsPerMinute float64       `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// fileConfig is the YAML layout accepted by LoadFile
type fileConfig struct {
	Node           NodeConfig                `yaml:"node"`
	Providers      map[string]ProviderConfig `yaml:"providers"`
	RequestTimeout time.Duration             `yaml:"request_timeout"`
	Redis          RedisConfig               `yaml:"redis"`
	Database       struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	Otel struct {
		Endpoint    string   `yaml:"endpoint"`
		SampleRatio *float64 `yaml:"sample_ratio"`
	} `yaml:"otel"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// LoadDotEnv seeds the environment from .env files. Missing files are not an error.
// Variables already present in the environment are left untouched.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logrus.Debugf("No .env file found, using process environment")
			return nil
		}
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load creates a new Config from environment variables
func Load() Config {
	apiKeys := map[string]string{}
	if raw := os.Getenv("API_KEYS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &apiKeys); err != nil {
			logrus.Warnf("Ignoring malformed API_KEYS: %v", err)
		}
	}

	providers := make(map[string]ProviderConfig, len(ProviderNames))
	for _, name := range ProviderNames {
		prefix := strings.ToUpper(name)
		key := GetEnvOrDefault(prefix+"_API_KEY", apiKeys[name])
		providers[name] = ProviderConfig{
			BaseURL:           GetEnvOrDefault(prefix+"_BASE_URL", ""),
			APIKey:            key,
			RequestsPerMinute: GetEnvAsFloat(prefix+"_RPM", 0),
			Timeout:           GetEnvAsDuration(prefix+"_TIMEOUT", 0),
		}
	}

	return Config{
		ServiceName: GetEnvOrDefault("OTEL_SERVICE_NAME", "extools"),
		Node: NodeConfig{
			URL:      GetEnvOrDefault("NODE_URL", "http://127.0.0.1:8545"),
			Timeout:  GetEnvAsDuration("NODE_TIMEOUT", 10*time.Second),
			RetryMax: GetEnvAsInt("NODE_RETRY_MAX", 0),
		},
		Providers:      providers,
		RequestTimeout: GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		Redis: RedisConfig{
			Addr:     GetEnvOrDefault("REDIS_ADDR", ""),
			Password: GetEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       GetEnvAsInt("REDIS_DB", 0),
			Prefix:   GetEnvOrDefault("REDIS_PREFIX", ""),
		},
		DatabaseURL:  GetEnvOrDefault("DATABASE_URL", ""),
		LogLevel:     GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    GetEnvOrDefault("LOG_FORMAT", "text"),
		LogFile:      GetEnvOrDefault("LOG_FILE", ""),
		OtelEndpoint:    GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelSampleRatio: GetEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		MetricsAddr:     GetEnvOrDefault("METRICS_ADDR", ""),
	}
}

// LoadFile loads the environment configuration and overlays the YAML file at
// path. ${VAR} references in the file are expanded. Values set in the file win.
func LoadFile(path string) (Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.overlay(fc)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) overlay(fc fileConfig) {
	if fc.Node.URL != "" {
		c.Node.URL = fc.Node.URL
	}
	if fc.Node.Timeout > 0 {
		c.Node.Timeout = fc.Node.Timeout
	}
	if fc.Node.RetryMax > 0 {
		c.Node.RetryMax = fc.Node.RetryMax
	}
	if fc.RequestTimeout > 0 {
		c.RequestTimeout = fc.RequestTimeout
	}

	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	for name, p := range fc.Providers {
		name = strings.ToLower(name)
		cur := c.Providers[name]
		if p.BaseURL != "" {
			cur.BaseURL = p.BaseURL
		}
		if p.APIKey != "" {
			cur.APIKey = p.APIKey
		}
		if p.RequestsPerMinute != 0 {
			cur.RequestsPerMinute = p.RequestsPerMinute
		}
		if p.Timeout > 0 {
			cur.Timeout = p.Timeout
		}
		c.Providers[name] = cur
	}

	if fc.Redis.Addr != "" {
		c.Redis.Addr = fc.Redis.Addr
	}
	if fc.Redis.Password != "" {
		c.Redis.Password = fc.Redis.Password
	}
	if fc.Redis.DB != 0 {
		c.Redis.DB = fc.Redis.DB
	}
	if fc.Redis.Prefix != "" {
		c.Redis.Prefix = fc.Redis.Prefix
	}
	if fc.Database.URL != "" {
		c.DatabaseURL = fc.Database.URL
	}
	if fc.Log.Level != "" {
		c.LogLevel = fc.Log.Level
	}
	if fc.Log.Format != "" {
		c.LogFormat = fc.Log.Format
	}
	if fc.Log.File != "" {
		c.LogFile = fc.Log.File
	}
	if fc.Otel.Endpoint != "" {
		c.OtelEndpoint = fc.Otel.Endpoint
	}
	// a ratio of 0 is meaningful, so only an absent key keeps the env value
	if fc.Otel.SampleRatio != nil {
		c.OtelSampleRatio = *fc.Otel.SampleRatio
	}
	if fc.MetricsAddr != "" {
		c.MetricsAddr = fc.MetricsAddr
	}
}

// Validate checks the values that would otherwise fail late at request time
func (c Config) Validate() error {
	if c.Node.URL == "" {
		return fmt.Errorf("node.url is required")
	}
	if err := validateURL(c.Node.URL); err != nil {
		return fmt.Errorf("node.url: %w", err)
	}
	if c.Node.RetryMax < 0 {
		return fmt.Errorf("node.retry_max must be >= 0")
	}
	for name, p := range c.Providers {
		if p.RequestsPerMinute < 0 {
			return fmt.Errorf("provider %s: requests_per_minute must be >= 0", name)
		}
		if p.BaseURL != "" {
			if err := validateURL(p.BaseURL); err != nil {
				return fmt.Errorf("provider %s: base_url: %w", name, err)
			}
		}
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}
	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		return fmt.Errorf("otel.sample_ratio must be within 0..1")
	}
	return nil
}

// Provider returns the overrides for name, or the zero value
func (c Config) Provider(name string) ProviderConfig {
	p := c.Providers[name]
	if p.Timeout == 0 {
		p.Timeout = c.RequestTimeout
	}
	return p
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
