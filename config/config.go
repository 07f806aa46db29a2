package config

import (
	"fmt"
	"os"
	"time"

	"github.com/xtxerr/scope/internal/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration for one engine instance.
type Config struct {
	// ID labels the engine in logs and metrics (e.g. "overview", "logs").
	ID string `yaml:"id"`

	Channel  ChannelConfig  `yaml:"channel"`
	History  HistoryConfig  `yaml:"history"`
	Series   SeriesConfig   `yaml:"series"`
	Entities EntitiesConfig `yaml:"entities"`
}

// ChannelConfig configures the live update channel.
type ChannelConfig struct {
	// URL is the websocket endpoint. Empty disables the live channel.
	URL string `yaml:"url"`

	// Channels is the subscription channel list.
	Channels []string `yaml:"channels"`

	// Filter is an optional server-side predicate, opaque to the engine.
	Filter map[string]any `yaml:"filter"`

	ReconnectInterval Duration `yaml:"reconnect_interval"`
	HandshakeTimeout  Duration `yaml:"handshake_timeout"`
	MaxFrameSize      int64    `yaml:"max_frame_size"`

	// Disable forces the polling fallback even if URL is set.
	Disable bool `yaml:"disable"`
}

// HistoryConfig configures the historical loader.
type HistoryConfig struct {
	// URL is the range-query endpoint. Empty disables seeding and the
	// polling fallback.
	URL string `yaml:"url"`

	PollInterval Duration `yaml:"poll_interval"`
	LoadTimeout  Duration `yaml:"load_timeout"`
	SeedRange    Duration `yaml:"seed_range"`
}

// SeriesConfig configures the windowed series store.
type SeriesConfig struct {
	Window    Duration `yaml:"window"`
	MaxPoints int      `yaml:"max_points"`
}

// EntitiesConfig configures entity collections.
type EntitiesConfig struct {
	// Cap bounds the alert and log collections.
	Cap int `yaml:"cap"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		ID: "default",
		Channel: ChannelConfig{
			ReconnectInterval: Duration(DefaultReconnectInterval),
			HandshakeTimeout:  Duration(DefaultHandshakeTimeout),
			MaxFrameSize:      DefaultMaxFrameSize,
		},
		History: HistoryConfig{
			PollInterval: Duration(DefaultPollInterval),
			LoadTimeout:  Duration(DefaultLoadTimeout),
			SeedRange:    Duration(DefaultSeedRange),
		},
		Series: SeriesConfig{
			Window:    Duration(DefaultWindow),
			MaxPoints: DefaultMaxPoints,
		},
		Entities: EntitiesConfig{
			Cap: DefaultCollectionCap,
		},
	}
}

// Load loads configuration from a YAML file, starting from defaults.
// Environment variables in the file are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	errs := errors.NewValidationErrors()

	if c.ID == "" {
		errs.AddMissing("id")
	}

	if c.Channel.URL == "" && c.History.URL == "" {
		errs.AddField("channel.url", "either channel.url or history.url must be set")
	}
	if c.Channel.URL != "" && len(c.Channel.Channels) == 0 {
		errs.AddField("channel.channels", "at least one channel is required")
	}
	if c.Channel.ReconnectInterval < 0 {
		errs.AddField("channel.reconnect_interval", "cannot be negative")
	}

	if c.History.URL != "" && c.History.PollInterval.Std() <= 0 {
		errs.AddField("history.poll_interval", "must be positive")
	}

	if c.Series.Window.Std() < 0 {
		errs.AddField("series.window", "cannot be negative")
	}
	if c.Series.MaxPoints < 0 {
		errs.AddField("series.max_points", "cannot be negative")
	}
	if c.Entities.Cap < 0 {
		errs.AddField("entities.cap", "cannot be negative")
	}

	return errs.Err()
}
