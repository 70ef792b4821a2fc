package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	Task       TaskConfig       `mapstructure:"task"       validate:"required"`
	Extraction ExtractionConfig `mapstructure:"extraction" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// TaskConfig contains settings for the extraction task scheduler.
type TaskConfig struct {
	// ProcessingDelay is the artificial latency applied before a submitted
	// batch is completed. It stands in for real extraction latency.
	ProcessingDelay time.Duration `mapstructure:"processing_delay" validate:"gte=0"`

	// TaskTTL controls the advertised expires_at on task snapshots.
	// Nothing sweeps expired tasks in this slice; the value is informational.
	TaskTTL time.Duration `mapstructure:"task_ttl" validate:"gt=0"`
}

// ExtractionConfig selects and configures the extraction engine.
type ExtractionConfig struct {
	// Provider picks the extractor implementation: "stub" returns
	// deterministic sample values, "gemini" calls the Gemini API.
	Provider string `mapstructure:"provider" validate:"required,oneof=stub gemini"`

	// GeminiAPIKey is required when Provider is "gemini".
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`

	// ModelName is the Gemini model used for field extraction.
	ModelName string `mapstructure:"model_name" validate:"required_if=Provider gemini"`

	// MaxRetries bounds retry attempts on transient Gemini failures.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
}
