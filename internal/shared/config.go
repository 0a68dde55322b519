package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API           APIConfig           `toml:"api"`
	Realtime      RealtimeConfig      `toml:"realtime"`
	Auth          AuthConfig          `toml:"auth"`
	Chat          ChatConfig          `toml:"chat"`
	Notifications NotificationsConfig `toml:"notifications"`
	Database      DatabaseConfig      `toml:"database"`
	Log           LogConfig           `toml:"log"`
}

// APIConfig contains REST endpoint settings.
type APIConfig struct {
	BaseURL   string   `toml:"base_url"`
	Prefix    string   `toml:"prefix"`
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"`
	Burst     int      `toml:"burst"`
}

// RealtimeConfig contains push channel settings.
type RealtimeConfig struct {
	URL              string   `toml:"url"`
	HandshakeTimeout Duration `toml:"handshake_timeout"`
}

// AuthConfig contains login flow settings.
type AuthConfig struct {
	AuthorizeURL string `toml:"authorize_url"`
	ClientID     string `toml:"client_id"`
	RedirectURI  string `toml:"redirect_uri"`
	ExchangePath string `toml:"exchange_path"`
	CallbackPort int    `toml:"callback_port"`
}

// ChatConfig contains timing and display settings for chat synchronization.
type ChatConfig struct {
	PollInterval     Duration `toml:"poll_interval"`
	OptimisticWindow Duration `toml:"optimistic_window"`
	EnterReadDelay   Duration `toml:"enter_read_delay"`
	EchoReadDelay    Duration `toml:"echo_read_delay"`
	EmptyPreview     string   `toml:"empty_preview"`
	PageSize         int      `toml:"page_size"`
}

// NotificationsConfig controls whether local notifications may be shown.
type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DatabaseConfig contains local storage settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Duration wraps [time.Duration] so it can be written as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv loads a .env file when present and overrides settings from FESTA_* variables.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load(".env")

	if v := os.Getenv("FESTA_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("FESTA_WS_URL"); v != "" {
		c.Realtime.URL = v
	}
	if v := os.Getenv("FESTA_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("FESTA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks durations and the storage driver.
func (c *Config) Validate() error {
	durations := map[string]Duration{
		"chat.poll_interval":     c.Chat.PollInterval,
		"chat.optimistic_window": c.Chat.OptimisticWindow,
		"chat.enter_read_delay":  c.Chat.EnterReadDelay,
		"chat.echo_read_delay":   c.Chat.EchoReadDelay,
	}
	for name, d := range durations {
		if d.Duration <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}

	switch c.Database.Driver {
	case "sqlite", "pebble", "memory":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
