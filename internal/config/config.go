// Package config loads service configuration from a YAML file with
// environment variable expansion. Every field has a sane default; the file
// and any individual key are optional.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration of the wallet sync service.
type Config struct {
	Solana     SolanaConfig     `yaml:"solana"`
	Connection ConnectionConfig `yaml:"connection"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Storage    StorageConfig    `yaml:"storage"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Push       PushConfig       `yaml:"push"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
}

// SolanaConfig holds RPC endpoints.
type SolanaConfig struct {
	RPCEndpoint string `yaml:"rpc_endpoint"`
	WSEndpoint  string `yaml:"ws_endpoint"`
}

// ConnectionConfig holds WebSocket connection tunables.
type ConnectionConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SendGap           time.Duration `yaml:"send_gap"`
	BackoffFloor      time.Duration `yaml:"backoff_floor"`
	BackoffCap        time.Duration `yaml:"backoff_cap"`
	JitterMax         time.Duration `yaml:"jitter_max"`
	MaxFailures       int           `yaml:"max_failures"`
}

// RefreshConfig bounds change-expecting balance refreshes.
type RefreshConfig struct {
	Attempts int           `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
	BatchGap time.Duration `yaml:"batch_gap"`
}

// StorageConfig holds database connection strings. Empty DSNs select
// in-memory storage.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// PricingConfig holds the external price API settings.
type PricingConfig struct {
	PriceAPIURL string        `yaml:"price_api_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// PushConfig holds the Redis pub/sub settings. An empty address disables
// push notifications.
type PushConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Channel       string `yaml:"channel"`
}

// HTTPConfig holds the status/metrics listener settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Connection: ConnectionConfig{
			HeartbeatInterval: 25 * time.Second,
			SendGap:           75 * time.Millisecond,
			BackoffFloor:      30 * time.Second,
			BackoffCap:        600 * time.Second,
			JitterMax:         5 * time.Second,
			MaxFailures:       5,
		},
		Refresh: RefreshConfig{
			Attempts: 10,
			Interval: 2 * time.Second,
			BatchGap: 75 * time.Millisecond,
		},
		Pricing: PricingConfig{
			CacheTTL: 30 * time.Second,
		},
		Push: PushConfig{
			Channel: "wallet-sync.balance",
		},
		HTTP: HTTPConfig{
			Addr: ":9090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path, expands ${VAR} references from the environment and merges
// the result over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Connection.MaxFailures < 0:
		return fmt.Errorf("connection.max_failures must be non-negative")
	case c.Connection.BackoffFloor <= 0:
		return fmt.Errorf("connection.backoff_floor must be positive")
	case c.Connection.BackoffCap < c.Connection.BackoffFloor:
		return fmt.Errorf("connection.backoff_cap must be at least backoff_floor")
	case c.Refresh.Attempts <= 0:
		return fmt.Errorf("refresh.attempts must be positive")
	case c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
