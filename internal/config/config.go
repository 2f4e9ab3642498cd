package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete cowork configuration
type Config struct {
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Presence  PresenceConfig  `mapstructure:"presence" yaml:"presence"`
	Broadcast BroadcastConfig `mapstructure:"broadcast" yaml:"broadcast"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// SessionConfig holds the defaults applied to new sessions
type SessionConfig struct {
	// DefaultMode is the collaboration mode used when none is given
	// Options: "live_share", "code_review", "pair_programming", "screen_share", "voice_chat"
	DefaultMode string `mapstructure:"default_mode" yaml:"default_mode"`
	// MaxParticipants caps the roster size, including the owner (default: 10)
	MaxParticipants int `mapstructure:"max_participants" yaml:"max_participants"`
	// RequireApproval only admits contacts that were invited
	RequireApproval bool `mapstructure:"require_approval" yaml:"require_approval"`
	// AllowScreenShare enables screen sharing inside calls
	AllowScreenShare bool `mapstructure:"allow_screen_share" yaml:"allow_screen_share"`
	// AllowVoiceVideo enables calls
	AllowVoiceVideo bool `mapstructure:"allow_voice_video" yaml:"allow_voice_video"`
	// RecordSession marks calls as recorded
	RecordSession bool `mapstructure:"record_session" yaml:"record_session"`
	// EnforcePermissions checks participant levels before mutating operations.
	// When false the core trusts an outer policy layer.
	EnforcePermissions bool `mapstructure:"enforce_permissions" yaml:"enforce_permissions"`
	// ActivityCapacity is the number of activity events retained per session (default: 100)
	ActivityCapacity int `mapstructure:"activity_capacity" yaml:"activity_capacity"`
}

// PresenceConfig controls the liveness layer
type PresenceConfig struct {
	// HeartbeatEnabled turns on automatic leave for silent participants
	HeartbeatEnabled bool `mapstructure:"heartbeat_enabled" yaml:"heartbeat_enabled"`
	// HeartbeatTimeoutSeconds is how long a participant may stay silent (default: 30)
	HeartbeatTimeoutSeconds int `mapstructure:"heartbeat_timeout_seconds" yaml:"heartbeat_timeout_seconds"`
	// SweepIntervalSeconds is how often silent participants are checked (default: 5)
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
}

// BroadcastConfig selects where session events are fanned out
type BroadcastConfig struct {
	// Sinks lists the enabled broadcasters
	// Options: "log", "bus", "redis"
	Sinks []string `mapstructure:"sinks" yaml:"sinks"`
	// MaxConcurrency bounds parallel delivery across sinks (default: 4)
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	// Redis configures the Redis pub/sub sink
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig configures the Redis pub/sub broadcaster
type RedisConfig struct {
	// URL is a redis:// connection URL
	URL string `mapstructure:"url" yaml:"url"`
	// ChannelPrefix is prepended to the session ID to form the channel name
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the log directory; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB triggers rotation of the log file (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			DefaultMode:        "live_share",
			MaxParticipants:    10,
			RequireApproval:    false,
			AllowScreenShare:   true,
			AllowVoiceVideo:    true,
			RecordSession:      false,
			EnforcePermissions: true,
			ActivityCapacity:   100,
		},
		Presence: PresenceConfig{
			HeartbeatEnabled:        true,
			HeartbeatTimeoutSeconds: 30,
			SweepIntervalSeconds:    5,
		},
		Broadcast: BroadcastConfig{
			Sinks:          []string{"log"},
			MaxConcurrency: 4,
			Redis: RedisConfig{
				URL:           "redis://localhost:6379/0",
				ChannelPrefix: "cowork:session:",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// HeartbeatTimeout returns the heartbeat timeout as a time.Duration
func (c *PresenceConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweep interval as a time.Duration
func (c *PresenceConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Session defaults
	viper.SetDefault("session.default_mode", defaults.Session.DefaultMode)
	viper.SetDefault("session.max_participants", defaults.Session.MaxParticipants)
	viper.SetDefault("session.require_approval", defaults.Session.RequireApproval)
	viper.SetDefault("session.allow_screen_share", defaults.Session.AllowScreenShare)
	viper.SetDefault("session.allow_voice_video", defaults.Session.AllowVoiceVideo)
	viper.SetDefault("session.record_session", defaults.Session.RecordSession)
	viper.SetDefault("session.enforce_permissions", defaults.Session.EnforcePermissions)
	viper.SetDefault("session.activity_capacity", defaults.Session.ActivityCapacity)

	// Presence defaults
	viper.SetDefault("presence.heartbeat_enabled", defaults.Presence.HeartbeatEnabled)
	viper.SetDefault("presence.heartbeat_timeout_seconds", defaults.Presence.HeartbeatTimeoutSeconds)
	viper.SetDefault("presence.sweep_interval_seconds", defaults.Presence.SweepIntervalSeconds)

	// Broadcast defaults
	viper.SetDefault("broadcast.sinks", defaults.Broadcast.Sinks)
	viper.SetDefault("broadcast.max_concurrency", defaults.Broadcast.MaxConcurrency)
	viper.SetDefault("broadcast.redis.url", defaults.Broadcast.Redis.URL)
	viper.SetDefault("broadcast.redis.channel_prefix", defaults.Broadcast.Redis.ChannelPrefix)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cowork")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cowork"
	}
	return filepath.Join(home, ".config", "cowork")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
