package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig locates the banking backend.
type APIConfig struct {
	// BaseURL is the root of the REST API (e.g., http://localhost:8000).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// WSURL is the push endpoint. The session token is appended as a
	// query parameter.
	WSURL string `mapstructure:"ws_url" yaml:"ws_url"`

	// Timeout bounds every REST round-trip.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ChannelConfig tunes the push connection.
type ChannelConfig struct {
	// ReconnectDelay is the wait before the first reconnection attempt.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`

	// MaxReconnectDelay caps the delay when BackoffMultiplier > 1.
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay" yaml:"max_reconnect_delay"`

	// BackoffMultiplier grows the delay after each failed attempt.
	// 1 keeps the delay fixed.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`

	// RefreshDelay is how long to wait after a transaction.success frame
	// before refetching notifications.
	RefreshDelay time.Duration `mapstructure:"refresh_delay" yaml:"refresh_delay"`

	// PingInterval sends websocket pings when positive.
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
}

// SyncConfig controls background refreshes.
type SyncConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// StoreConfig locates the local SQLite cache.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// EventsConfig enables the Redis event bridge when RedisAddr is set.
type EventsConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisChannel  string `mapstructure:"redis_channel" yaml:"redis_channel"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Channel ChannelConfig `mapstructure:"channel" yaml:"channel"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// ConfigDir returns ~/.config/nyord, falling back to the working directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nyord")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/nyord/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			WSURL:   "ws://localhost:8000/ws",
			Timeout: 30 * time.Second,
		},
		Channel: ChannelConfig{
			ReconnectDelay:    5 * time.Second,
			MaxReconnectDelay: 5 * time.Second,
			BackoffMultiplier: 1,
			RefreshDelay:      time.Second,
		},
		Sync: SyncConfig{
			RefreshInterval: 30 * time.Second,
			PollInterval:    10 * time.Second,
		},
		Store: StoreConfig{Path: filepath.Join(dir, "notifier.db")},
		Log: LogConfig{
			Path:  filepath.Join(dir, "notifier.log"),
			Level: "info",
		},
		Events:  EventsConfig{RedisChannel: "nyord:events"},
		Display: DisplayConfig{Theme: "default"},
	}
}

// setDefaults mirrors defaultAppConfig into v so env overrides of
// individual keys resolve against the right base values.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.ws_url", d.API.WSURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("channel.reconnect_delay", d.Channel.ReconnectDelay)
	v.SetDefault("channel.max_reconnect_delay", d.Channel.MaxReconnectDelay)
	v.SetDefault("channel.backoff_multiplier", d.Channel.BackoffMultiplier)
	v.SetDefault("channel.refresh_delay", d.Channel.RefreshDelay)
	v.SetDefault("channel.ping_interval", d.Channel.PingInterval)
	v.SetDefault("sync.refresh_interval", d.Sync.RefreshInterval)
	v.SetDefault("sync.poll_interval", d.Sync.PollInterval)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("events.redis_addr", d.Events.RedisAddr)
	v.SetDefault("events.redis_password", d.Events.RedisPassword)
	v.SetDefault("events.redis_channel", d.Events.RedisChannel)
	v.SetDefault("display.theme", d.Display.Theme)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with NYORD_ override file values
// (NYORD_API_BASE_URL overrides api.base_url). If the file does not exist,
// defaults plus environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NYORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, defaultAppConfig())

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Channel.BackoffMultiplier < 1 {
		cfg.Channel.BackoffMultiplier = 1
	}
	if cfg.Channel.MaxReconnectDelay < cfg.Channel.ReconnectDelay {
		cfg.Channel.MaxReconnectDelay = cfg.Channel.ReconnectDelay
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("channel", cfg.Channel)
	v.Set("sync", cfg.Sync)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)
	v.Set("events", cfg.Events)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
