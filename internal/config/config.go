package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables. Loaded once at startup and treated
// as immutable afterwards.
type Config struct {
	DownloadDir string `envconfig:"DOWNLOAD_DIR" required:"true"`
	DBPath      string `envconfig:"DB_PATH" default:"coursemirror.db"`
	PolicyFile  string `envconfig:"POLICY_FILE"`
	Workers     int    `envconfig:"WORKERS" default:"4"`
	QueueSize   int    `envconfig:"QUEUE_SIZE" default:"64"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"INFO"`

	ManifestURL string `envconfig:"MANIFEST_URL"`
	PortalToken string `envconfig:"PORTAL_TOKEN"`
	Rebuild     bool   `envconfig:"REBUILD"`

	Retry struct {
		MaxAttempts     uint          `split_words:"true" default:"3"`
		InitialInterval time.Duration `split_words:"true" default:"500ms"`
		MaxInterval     time.Duration `split_words:"true" default:"10s"`
	}

	Telemetry struct {
		Enabled bool `split_words:"true" default:"true"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9099"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("WORKERS must be >= 1, got %d", cfg.Workers)
	}

	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("QUEUE_SIZE must be >= 0, got %d", cfg.QueueSize)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
