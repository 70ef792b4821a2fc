package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Default values keep local development workable without a config file.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("task.processing_delay", 5*time.Second)
	v.SetDefault("task.task_ttl", 24*time.Hour)
	v.SetDefault("extraction.provider", "stub")
	v.SetDefault("extraction.max_retries", 3)

	// Empty defaults register the remaining keys with viper so AutomaticEnv
	// can see them; validation rejects the empties below when required.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("extraction.gemini_api_key", "")
	v.SetDefault("extraction.model_name", "")

	// Optional config file in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine; environment variables may carry everything.
	}

	// Environment variables with FORMSENSE_ prefix override file values,
	// e.g. FORMSENSE_DATABASE_URL maps to database.url.
	v.SetEnvPrefix("FORMSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// validate checks the loaded configuration against the struct validation tags.
func validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}
