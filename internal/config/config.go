// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Upload backends.
const (
	UploadBackendPicadabra = "picadabra"
	UploadBackendS3        = "s3"
)

// Static errors for configuration validation.
var (
	// ErrFalAPIKeyRequired is returned when FAL_API_KEY is not set.
	ErrFalAPIKeyRequired = errors.New("config: FAL_API_KEY is required")
	// ErrPicadabraAPIKeyRequired is returned when the Picadabra backend is selected without PICADABRA_API_KEY.
	ErrPicadabraAPIKeyRequired = errors.New("config: PICADABRA_API_KEY is required")
	// ErrS3BucketRequired is returned when the S3 backend is selected without S3_BUCKET.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required for the s3 upload backend")
	// ErrInvalidUploadBackend is returned for an unknown UPLOAD_BACKEND.
	ErrInvalidUploadBackend = errors.New("config: UPLOAD_BACKEND must be picadabra or s3")
	// ErrInvalidValue is returned when a numeric setting is out of range.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int    `env:"PORT, default=8000" json:"port"`
	Debug       bool   `env:"DEBUG, default=false" json:"debug"`
	ServiceName string `env:"PROJECT_NAME, default=Video Reframe API" json:"service_name"`
	Version     string `env:"VERSION, default=1.0.0" json:"version"`

	// CORS settings
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=http://localhost:3000,http://127.0.0.1:3000" json:"allowed_origins"`

	// Picadabra settings
	PicadabraAPIKey  string `env:"PICADABRA_API_KEY" json:"-"` // Masked in JSON
	PicadabraBaseURL string `env:"PICADABRA_BASE_URL, default=https://api-test.picadabra.ai" json:"picadabra_base_url"`

	// fal.ai settings
	FalAPIKey  string `env:"FAL_API_KEY, required" json:"-"` // Masked in JSON
	FalBaseURL string `env:"FAL_BASE_URL, default=https://fal.ai" json:"fal_base_url"`
	FalModel   string `env:"FAL_MODEL, default=fal-ai/luma-dream-machine/ray-2-flash/reframe" json:"fal_model"`

	// Validation settings
	MaxFileSize        int64  `env:"MAX_FILE_SIZE, default=104857600" json:"max_file_size"`
	ValidateDimensions bool   `env:"VALIDATE_DIMENSIONS, default=true" json:"validate_dimensions"`
	RequiredWidth      int    `env:"REQUIRED_WIDTH, default=512" json:"required_width"`
	RequiredHeight     int    `env:"REQUIRED_HEIGHT, default=512" json:"required_height"`
	FFprobePath        string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Storage settings
	TempDir       string `env:"TEMP_DIR, default=/tmp/reframe" json:"temp_dir"`
	UploadPrefix  string `env:"UPLOAD_PREFIX, default=uploads/videos" json:"upload_prefix"`
	UploadBackend string `env:"UPLOAD_BACKEND, default=picadabra" json:"upload_backend"` // "picadabra" or "s3"

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION, default=us-east-1" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Polling settings
	DefaultMaxWaitSec      int `env:"DEFAULT_MAX_WAIT_SEC, default=300" json:"default_max_wait_sec"`
	DefaultPollIntervalSec int `env:"DEFAULT_POLL_INTERVAL_SEC, default=10" json:"default_poll_interval_sec"`

	// Finished process sessions are forgotten after SESSION_TTL_SEC; 0 keeps them.
	SessionTTLSec int `env:"SESSION_TTL_SEC, default=3600" json:"session_ttl_sec"`

	// Rate limiting
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE, default=60" json:"rate_limit_per_minute"`
	RateLimitPerHour   int `env:"RATE_LIMIT_PER_HOUR, default=1000" json:"rate_limit_per_hour"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES" json:"trusted_proxies,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if uploads go to S3.
func (c *Config) S3Enabled() bool {
	return strings.EqualFold(c.UploadBackend, UploadBackendS3)
}

// DefaultMaxWait returns the default wait budget as a duration.
func (c *Config) DefaultMaxWait() time.Duration {
	return time.Duration(c.DefaultMaxWaitSec) * time.Second
}

// SessionTTL returns how long idle process sessions are kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

// DefaultPollInterval returns the default poll interval as a duration.
func (c *Config) DefaultPollInterval() time.Duration {
	return time.Duration(c.DefaultPollIntervalSec) * time.Second
}

// Load reads a .env file when present, then configuration from environment
// variables using go-envconfig. Variables already set in the environment win
// over the .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "FAL_API_KEY") {
			return nil, ErrFalAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.FalAPIKey == "" {
		return ErrFalAPIKeyRequired
	}

	switch strings.ToLower(c.UploadBackend) {
	case UploadBackendPicadabra:
		if c.PicadabraAPIKey == "" {
			return ErrPicadabraAPIKeyRequired
		}
	case UploadBackendS3:
		if c.S3Bucket == "" {
			return ErrS3BucketRequired
		}
	default:
		return ErrInvalidUploadBackend
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("%w: MAX_FILE_SIZE must be positive", ErrInvalidValue)
	}
	if c.RequiredWidth <= 0 || c.RequiredHeight <= 0 {
		return fmt.Errorf("%w: REQUIRED_WIDTH and REQUIRED_HEIGHT must be positive", ErrInvalidValue)
	}
	if c.DefaultMaxWaitSec < 30 || c.DefaultMaxWaitSec > 600 {
		return fmt.Errorf("%w: DEFAULT_MAX_WAIT_SEC must be between 30 and 600", ErrInvalidValue)
	}
	if c.DefaultPollIntervalSec < 5 || c.DefaultPollIntervalSec > 30 {
		return fmt.Errorf("%w: DEFAULT_POLL_INTERVAL_SEC must be between 5 and 30", ErrInvalidValue)
	}
	if c.SessionTTLSec < 0 {
		return fmt.Errorf("%w: SESSION_TTL_SEC must not be negative", ErrInvalidValue)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs. DEBUG forces debug level.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)
	if c.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Debug: %t, UploadBackend: %s, PicadabraBaseURL: %s, FalBaseURL: %s, FalModel: %s, MaxFileSize: %d, ValidateDimensions: %t, TempDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Debug,
		c.UploadBackend,
		c.PicadabraBaseURL,
		c.FalBaseURL,
		c.FalModel,
		c.MaxFileSize,
		c.ValidateDimensions,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
