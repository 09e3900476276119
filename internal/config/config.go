// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrUploadDirRequired is returned when UPLOAD_DIR resolves to an empty path.
	ErrUploadDirRequired = errors.New("config: UPLOAD_DIR is required")
	// ErrInvalidWorkerCount is returned when WORKER_COUNT is not positive.
	ErrInvalidWorkerCount = errors.New("config: WORKER_COUNT must be positive")
	// ErrInvalidSizeLimits is returned when the free ceiling exceeds the pro ceiling.
	ErrInvalidSizeLimits = errors.New("config: FREE_MAX_FILE_BYTES must not exceed PRO_MAX_FILE_BYTES")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	UploadDir    string `env:"UPLOAD_DIR, default=./uploads" json:"upload_dir"`
	DatabasePath string `env:"DATABASE_PATH, default=./silencecut.db" json:"database_path"`

	// External tool settings
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Processing settings
	WorkerCount    int           `env:"WORKER_COUNT, default=1" json:"worker_count"`
	ProcessTimeout time.Duration `env:"PROCESS_TIMEOUT, default=10m" json:"process_timeout"`

	// Admission settings
	FreeMaxFileBytes int64 `env:"FREE_MAX_FILE_BYTES, default=104857600" json:"free_max_file_bytes"`
	ProMaxFileBytes  int64 `env:"PRO_MAX_FILE_BYTES, default=524288000" json:"pro_max_file_bytes"`
	MaxBatchFiles    int   `env:"MAX_BATCH_FILES, default=3" json:"max_batch_files"`
	FreeMaxProjects  int   `env:"FREE_MAX_PROJECTS, default=3" json:"free_max_projects"`

	// Paid-tier user IDs, comma separated. Development stand-in for the
	// billing service.
	PaidUserIDs []string `env:"PAID_USER_IDS" json:"paid_user_ids,omitempty"`

	// Optional S3 settings for mirroring processed files
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the loaded configuration is internally consistent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UploadDir) == "" {
		return ErrUploadDirRequired
	}
	if c.WorkerCount <= 0 {
		return ErrInvalidWorkerCount
	}
	if c.FreeMaxFileBytes > c.ProMaxFileBytes {
		return ErrInvalidSizeLimits
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

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
		"Config{Port: %d, UploadDir: %s, DatabasePath: %s, WorkerCount: %d, ProcessTimeout: %s, FreeMaxFileBytes: %d, ProMaxFileBytes: %d, MaxBatchFiles: %d, FreeMaxProjects: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.UploadDir,
		c.DatabasePath,
		c.WorkerCount,
		c.ProcessTimeout,
		c.FreeMaxFileBytes,
		c.ProMaxFileBytes,
		c.MaxBatchFiles,
		c.FreeMaxProjects,
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
