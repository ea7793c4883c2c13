package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/calebms/reddit-extractor/internal/validator"
)

// Credentials holds the Reddit API credentials loaded from the environment
// (optionally via a .env file). ClientSecret stays empty for installed apps.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string `validate:"required"`
	RefreshToken string
}

// Settings holds extractor defaults, overridable through an optional
// settings file (extractor.yaml) discovered by viper.
type Settings struct {
	DefaultSort       string        `mapstructure:"default_sort" validate:"oneof=best top new controversial old qa"`
	OutputDir         string        `mapstructure:"output_dir"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gt=0"`
	MaxMoreRequests   int           `mapstructure:"max_more_requests" validate:"gte=0"`
}

// Config is the full application configuration.
type Config struct {
	Credentials
	Settings
}

// Load reads credentials from the environment (loading .env first when
// present) and settings from an optional config file, then validates the
// result. A missing client ID is not fatal: the extractor falls back to the
// unauthenticated public JSON endpoints, at stricter rate limits.
func Load() (*Config, error) {
	// .env is a developer convenience; absence is normal.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment from .env file")
	}

	creds := Credentials{
		ClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		ClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		UserAgent:    os.Getenv("REDDIT_USER_AGENT"),
		RefreshToken: os.Getenv("REDDIT_REFRESH_TOKEN"),
	}

	if creds.UserAgent == "" {
		return nil, fmt.Errorf("REDDIT_USER_AGENT environment variable is required but not set (e.g. \"myapp/1.0 by /u/me\")")
	}
	if creds.ClientID == "" {
		slog.Warn("REDDIT_CLIENT_ID not set, using unauthenticated API access (lower rate limits)")
	}

	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Credentials: creds, Settings: settings}
	if err := validator.New().ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadSettings() (Settings, error) {
	v := viper.New()
	v.SetDefault("default_sort", "best")
	v.SetDefault("output_dir", ".")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("requests_per_minute", 60)
	v.SetDefault("max_more_requests", 20)

	if path := os.Getenv("EXTRACTOR_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("extractor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/reddit-extractor")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}
		slog.Debug("No settings file found, using defaults")
	} else {
		slog.Info("Loaded settings file", "path", v.ConfigFileUsed())
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	s.DefaultSort = strings.ToLower(s.DefaultSort)
	return s, nil
}
