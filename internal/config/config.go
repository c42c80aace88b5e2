package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Client   ClientConfig
	Capture  CaptureConfig
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
}

// ClientConfig points the CLI at a recognition service.
type ClientConfig struct {
	URL        string        `env:"FACE_API_URL" envDefault:"http://localhost:8000"`
	Timeout    time.Duration `env:"FACE_API_TIMEOUT" envDefault:"0s"` // 0 = wait for the transport
	CaptureDir string        `env:"FACE_API_CAPTURE_DIR"`              // save raw API responses for testing
}

type CaptureConfig struct {
	CameraURL    string `env:"CAMERA_SNAPSHOT_URL"` // IP camera JPEG snapshot endpoint
	MaxDimension int    `env:"CAPTURE_MAX_DIMENSION" envDefault:"1920"`
	JPEGQuality  int    `env:"CAPTURE_JPEG_QUALITY" envDefault:"85"`
}

// ServerConfig configures the reference recognition service.
type ServerConfig struct {
	Host                 string        `env:"WEB_HOST" envDefault:"0.0.0.0"`
	Port                 int           `env:"WEB_PORT" envDefault:"8000"`
	AllowedOrigins       string        `env:"WEB_ALLOWED_ORIGINS"` // comma-separated
	RecognitionThreshold float64       `env:"RECOGNITION_THRESHOLD" envDefault:"0.6"`
	MaxRequestBodySize   int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"10485760"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	URL           string `env:"DATABASE_URL"` // PostgreSQL URL; empty = in-memory store
	MaxOpenConns  int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns  int    `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"2"`
	HNSWIndexPath string `env:"HNSW_INDEX_PATH"` // persist the in-memory index (optional)
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"` // console or json
}

// Load reads configuration from the environment. Only parse errors are
// reported; commands validate the groups they use with ValidateClient or
// ValidateServer.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks every group.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateClient(), c.ValidateServer())
}

// ValidateClient checks the groups used by the client commands.
func (c *Config) ValidateClient() error {
	var errs []error
	if c.Capture.MaxDimension < 0 {
		errs = append(errs, errors.New("CAPTURE_MAX_DIMENSION must not be negative"))
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("CAPTURE_JPEG_QUALITY must be within 1-100, got %d", c.Capture.JPEGQuality))
	}
	if c.Client.Timeout < 0 {
		errs = append(errs, errors.New("FACE_API_TIMEOUT must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the groups used by the recognition service.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.Server.RecognitionThreshold < 0 || c.Server.RecognitionThreshold > 1 {
		errs = append(errs, fmt.Errorf("RECOGNITION_THRESHOLD must be within [0,1], got %v", c.Server.RecognitionThreshold))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("WEB_PORT must be within 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("DATABASE_MAX_OPEN_CONNS must be positive"))
	}
	if c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("DATABASE_MAX_IDLE_CONNS must not be negative"))
	}
	return errors.Join(errs...)
}

// Origins parses the comma-separated allowed origins.
func (c *ServerConfig) Origins() []string {
	var origins []string
	for o := range strings.SplitSeq(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
