package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. TODO_SERVER_PORT or TODO_STORAGE_THUMBNAILS_BUCKET.
const EnvPrefix = "TODO"

// defaults lists every configuration key together with its default value.
// Registering each key is what lets viper resolve environment variables
// during Unmarshal.
var defaults = map[string]any{
	"server.port":           8080,
	"server.log_level":      "info",
	"server.internal_token": "",

	"database.url":          "",
	"database.auto_migrate": false,

	"auth.jwt_secret":             "",
	"auth.token_lifetime_minutes": 60,

	"storage.attachments_bucket":        "",
	"storage.thumbnails_bucket":         "",
	"storage.public_base_url":           "https://storage.googleapis.com",
	"storage.upload_url_expiry_minutes": 5,
	"storage.emulator_host":             "",

	"gateway.endpoint":              "",
	"gateway.stage":                 "dev",
	"gateway.push_timeout_seconds":  5,
	"gateway.ping_interval_seconds": 30,
	"gateway.in_process":            false,

	"pipeline.concurrency":                8,
	"pipeline.invocation_timeout_seconds": 60,
	"pipeline.thumbnail_quality":          90,

	"registry.page_size": 500,
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks a Config against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
