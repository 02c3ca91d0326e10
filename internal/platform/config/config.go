// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
)

// Config holds the server configuration.
type Config struct {
	// ListenAddr is the address to listen on. Example: ":8080".
	ListenAddr string `toml:"listen_addr"`

	// BasePath is the optional path prefix for all API endpoints.
	// Example: "/taskeer" or empty string.
	BasePath string `toml:"base_path"`

	// Storage holds persistence settings.
	Storage StorageConfig `toml:"storage"`

	// Sessions holds session settings.
	Sessions SessionsConfig `toml:"sessions"`

	// Notifications holds notification delivery settings.
	Notifications NotificationsConfig `toml:"notifications"`

	// Janitor holds background cleanup settings.
	Janitor JanitorConfig `toml:"janitor"`

	// Logging holds logging settings.
	Logging LoggingConfig `toml:"logging"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Driver is the storage driver. Only "sqlite" is currently supported.
	Driver string `toml:"driver"`

	// DataDir is the directory holding the database file.
	DataDir string `toml:"data_dir"`
}

// SessionsConfig holds session settings.
type SessionsConfig struct {
	// TTLHours is the session lifetime in hours.
	TTLHours int `toml:"ttl_hours"`
}

// NotificationsConfig holds notification delivery settings.
type NotificationsConfig struct {
	// WebhookURL, when set, receives a POST per dispatched notification.
	WebhookURL string `toml:"webhook_url"`

	// TimeoutMS is the webhook request timeout in milliseconds.
	TimeoutMS int `toml:"timeout_ms"`
}

// JanitorConfig holds background cleanup settings.
type JanitorConfig struct {
	// Enabled turns the janitor on.
	Enabled bool `toml:"enabled"`

	// Schedule is a cron expression. Default: hourly.
	Schedule string `toml:"schedule"`

	// NotificationRetentionDays is how long read notifications are kept.
	NotificationRetentionDays int `toml:"notification_retention_days"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		ListenAddr: ":8080",
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: "./data",
		},
		Sessions: SessionsConfig{
			TTLHours: 72,
		},
		Notifications: NotificationsConfig{
			TimeoutMS: 5000,
		},
		Janitor: JanitorConfig{
			Enabled:                   true,
			Schedule:                  "@hourly",
			NotificationRetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.BasePath != "" {
		if !strings.HasPrefix(c.BasePath, "/") {
			return fmt.Errorf("base_path must start with /: %q", c.BasePath)
		}
		if strings.HasSuffix(c.BasePath, "/") {
			return fmt.Errorf("base_path must not end with /: %q", c.BasePath)
		}
	}
	if c.Storage.Driver != "sqlite" {
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Sessions.TTLHours <= 0 {
		return fmt.Errorf("sessions.ttl_hours must be positive")
	}
	if c.Janitor.NotificationRetentionDays < 0 {
		return fmt.Errorf("janitor.notification_retention_days must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	return nil
}

// Redacted returns a copy safe to log. Nothing in the current config is
// secret, but webhook URLs may embed credentials, so the userinfo part is
// stripped.
func (c *Config) Redacted() Config {
	out := *c
	if i := strings.Index(out.Notifications.WebhookURL, "@"); i >= 0 {
		if j := strings.Index(out.Notifications.WebhookURL, "://"); j >= 0 && j < i {
			out.Notifications.WebhookURL = out.Notifications.WebhookURL[:j+3] + "***" + out.Notifications.WebhookURL[i:]
		}
	}
	return out
}
