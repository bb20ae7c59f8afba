package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/welloul/CyptoTerminal/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	App     AppConfig      `mapstructure:"app"`
	Logging logging.Config `mapstructure:"logging"`
	Feed    FeedConfig     `mapstructure:"feed"`
	Collab  CollabConfig   `mapstructure:"collab"`
	Status  StatusConfig   `mapstructure:"status"`
	RPC     RPCConfig      `mapstructure:"rpc"`
	Redis   RedisConfig    `mapstructure:"redis"`
	Health  HealthConfig   `mapstructure:"health"`
	Console ConsoleConfig  `mapstructure:"console"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// FeedConfig holds market stream settings.
type FeedConfig struct {
	URL              string        `mapstructure:"url"`
	InitialSymbol    string        `mapstructure:"initial_symbol"`
	QuoteSuffix      string        `mapstructure:"quote_suffix"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadBufferSize   int           `mapstructure:"read_buffer_size"`
	WriteBufferSize  int           `mapstructure:"write_buffer_size"`
	OutboxSize       int           `mapstructure:"outbox_size"`
}

// CollabConfig holds REST collaborator settings.
type CollabConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// StatusConfig controls the HTTP status API.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// RPCConfig controls the local gRPC socket.
type RPCConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SocketPath string `mapstructure:"socket_path"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// HealthConfig tunes the feed health monitor.
type HealthConfig struct {
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`
	CoolOff        time.Duration `mapstructure:"cool_off"`
}

// ConsoleConfig controls the terminal table renderer.
type ConsoleConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load builds configuration from a .env file, a config file, environment
// variables prefixed with CTERM_, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cyptoterm")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.path", "")
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 7)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("feed.url", "ws://localhost:8000/ws")
	v.SetDefault("feed.initial_symbol", "BTCUSDT")
	v.SetDefault("feed.quote_suffix", "USDT")
	v.SetDefault("feed.heartbeat_timeout", "30s")
	v.SetDefault("feed.handshake_timeout", "10s")
	v.SetDefault("feed.read_buffer_size", 16*1024)
	v.SetDefault("feed.write_buffer_size", 4096)
	v.SetDefault("feed.outbox_size", 256)

	v.SetDefault("collab.base_url", "http://localhost:8000")
	v.SetDefault("collab.timeout", "10s")
	v.SetDefault("collab.requests_per_second", 2.0)
	v.SetDefault("collab.burst", 2)

	v.SetDefault("status.enabled", true)
	v.SetDefault("status.address", "127.0.0.1:8090")

	v.SetDefault("rpc.enabled", false)
	v.SetDefault("rpc.socket_path", "/tmp/cyptoterm/verdict.sock")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "cyptoterm")

	v.SetDefault("health.stale_threshold", "5s")
	v.SetDefault("health.cool_off", "2s")

	v.SetDefault("console.enabled", false)
	v.SetDefault("console.interval", "1s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Feed.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("feed.url must be a ws:// or wss:// URL, got %q", c.Feed.URL)
	}
	if strings.TrimSpace(c.Feed.QuoteSuffix) == "" {
		return fmt.Errorf("feed.quote_suffix is required")
	}
	if c.Feed.HeartbeatTimeout < 0 {
		return fmt.Errorf("feed.heartbeat_timeout cannot be negative")
	}
	if c.Feed.OutboxSize <= 0 {
		return fmt.Errorf("feed.outbox_size must be greater than zero")
	}
	if c.Collab.RequestsPerSecond <= 0 {
		return fmt.Errorf("collab.requests_per_second must be greater than zero")
	}
	if c.Health.StaleThreshold <= 0 {
		return fmt.Errorf("health.stale_threshold must be greater than zero")
	}
	if c.Console.Enabled && c.Console.Interval <= 0 {
		return fmt.Errorf("console.interval must be greater than zero")
	}
	if c.Status.Enabled && c.Status.Address == "" {
		return fmt.Errorf("status.address is required when the status API is enabled")
	}
	if c.RPC.Enabled && c.RPC.SocketPath == "" {
		return fmt.Errorf("rpc.socket_path is required when rpc is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
