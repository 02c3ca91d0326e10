package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/JCampos05/Backend-Taskeer/internal/platform/logutil"
)

// FlagOverrides holds CLI flag values that override config file values.
// Nil or empty values mean "not set".
type FlagOverrides struct {
	ListenAddr   *string
	BasePath     *string
	DataDir      *string
	LoggingLevel *string
	WebhookURL   *string
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that override file values.
	FlagOverrides FlagOverrides

	// Logger is used for warnings (e.g. undecoded keys). Nil is allowed.
	Logger *slog.Logger
}

// Load builds the effective configuration with precedence:
// defaults -> TOML file -> CLI flags.
func Load(opts LoaderOptions) (*Config, error) {
	logger := logutil.OrDiscard(opts.Logger)

	cfg := Defaults()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", opts.ConfigPath, err)
		}
		for _, key := range meta.Undecoded() {
			logger.Warn("unknown config key ignored", "key", key.String(), "file", opts.ConfigPath)
		}
	}

	applyFlagOverrides(cfg, opts.FlagOverrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlagOverrides(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.BasePath != nil && *f.BasePath != "" {
		cfg.BasePath = *f.BasePath
	}
	if f.DataDir != nil && *f.DataDir != "" {
		cfg.Storage.DataDir = *f.DataDir
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.WebhookURL != nil && *f.WebhookURL != "" {
		cfg.Notifications.WebhookURL = *f.WebhookURL
	}
}
