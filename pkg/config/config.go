// Package config loads the daemon configuration from a YAML file with
// environment overrides for credentials, so secrets stay out of the
// config file checked into the device image.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Listen         string   `yaml:"listen"`          // e.g., ":8080"
	TrustedProxies []string `yaml:"trusted_proxies"` // gin trusted proxy list
	User           string   `yaml:"user"`            // override: VIEWFINDER_USER
	Password       string   `yaml:"password"`        // override: VIEWFINDER_PASSWORD
	SessionSecret  string   `yaml:"session_secret"`  // override: VIEWFINDER_SESSION_SECRET
}

// CameraConfig selects the device and preview geometry at startup.
type CameraConfig struct {
	Position       string `yaml:"position"` // "front", "rear" or "unspecified"
	HighResolution bool   `yaml:"high_resolution"`
	PreviewWidth   int    `yaml:"preview_width"`
	PreviewHeight  int    `yaml:"preview_height"`
	PreviewFPS     int    `yaml:"preview_fps"`
	Quality        int    `yaml:"quality"` // default JPEG quality 1-100
}

// TorchConfig maps the torch to a GPIO illuminator line. Empty chip
// means no torch hardware.
type TorchConfig struct {
	Chip string `yaml:"chip"` // e.g., "gpiochip0"
	Line int    `yaml:"line"`
}

// StorageConfig describes where captures and recordings land.
type StorageConfig struct {
	CaptureDir     string `yaml:"capture_dir"`
	VideoPath      string `yaml:"video_path"`
	RetentionHours int    `yaml:"retention_hours"`
}

// TimelapseConfig drives the periodic capture scheduler.
type TimelapseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression
	Quality  int    `yaml:"quality"`
}

// UploadConfig points captured stills at an ingest endpoint. Empty URL
// disables uploading.
type UploadConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TelemetryConfig enables the OTLP exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "otel-collector:4317"
}

// Config aggregates all daemon configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
	Server    ServerConfig    `yaml:"server"`
	Camera    CameraConfig    `yaml:"camera"`
	Torch     TorchConfig     `yaml:"torch"`
	Storage   StorageConfig   `yaml:"storage"`
	Timelapse TimelapseConfig `yaml:"timelapse"`
	Upload    UploadConfig    `yaml:"upload"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// Load reads a YAML file, applies defaults and environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if len(c.Server.TrustedProxies) == 0 {
		c.Server.TrustedProxies = []string{"127.0.0.1"}
	}
	if c.Camera.Position == "" {
		c.Camera.Position = "rear"
	}
	if c.Camera.PreviewWidth <= 0 {
		c.Camera.PreviewWidth = 640
	}
	if c.Camera.PreviewHeight <= 0 {
		c.Camera.PreviewHeight = 480
	}
	if c.Camera.PreviewFPS <= 0 {
		c.Camera.PreviewFPS = 30
	}
	if c.Camera.Quality <= 0 || c.Camera.Quality > 100 {
		c.Camera.Quality = 85
	}
	if c.Storage.CaptureDir == "" {
		c.Storage.CaptureDir = "./capture-data"
	}
	if c.Storage.VideoPath == "" {
		c.Storage.VideoPath = "./capture-data/video.h264"
	}
	if c.Storage.RetentionHours <= 0 {
		c.Storage.RetentionHours = 24 * 7
	}
	if c.Timelapse.Schedule == "" {
		c.Timelapse.Schedule = "*/5 * * * *"
	}
	if c.Timelapse.Quality <= 0 || c.Timelapse.Quality > 100 {
		c.Timelapse.Quality = c.Camera.Quality
	}
	if c.Upload.TimeoutSeconds <= 0 {
		c.Upload.TimeoutSeconds = 30
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "otel-collector:4317"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VIEWFINDER_USER"); v != "" {
		c.Server.User = v
	}
	if v := os.Getenv("VIEWFINDER_PASSWORD"); v != "" {
		c.Server.Password = v
	}
	if v := os.Getenv("VIEWFINDER_SESSION_SECRET"); v != "" {
		c.Server.SessionSecret = v
	}
}

func (c *Config) validate() error {
	switch c.Camera.Position {
	case "front", "rear", "unspecified":
	default:
		return fmt.Errorf("camera.position must be front, rear or unspecified, got %q", c.Camera.Position)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// Retention returns how long captures are kept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionHours) * time.Hour
}

// UploadTimeout returns the per-upload deadline.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.TimeoutSeconds) * time.Second
}
