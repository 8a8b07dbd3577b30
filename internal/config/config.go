package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sampler modes.
const (
	ModeContinuous = "continuous"
	ModeSingle     = "single"
)

// Capture sources.
const (
	SourceSynthetic = "synthetic"
	SourceMJPEG     = "mjpeg"
	SourceFile      = "file"
	SourceDevice    = "device"
)

type Config struct {
	Service ServiceConfig `yaml:"service"`
	Capture CaptureConfig `yaml:"capture"`
	Sampler SamplerConfig `yaml:"sampler"`
	Poller  PollerConfig  `yaml:"poller"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Server  ServerConfig  `yaml:"server"`
}

// ServiceConfig points the console at the remote classification service.
type ServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	PushURL string        `yaml:"push_url"` // optional ws:// endpoint for active-session push
	Timeout time.Duration `yaml:"timeout"`
}

type CaptureConfig struct {
	Source   string `yaml:"source"`
	Device   int    `yaml:"device"`
	MJPEGURL string `yaml:"mjpeg_url"`
	File     string `yaml:"file"`
	FPS      int    `yaml:"fps"`
}

type SamplerConfig struct {
	Mode        string        `yaml:"mode"`
	Interval    time.Duration `yaml:"interval"`
	Region      int           `yaml:"region"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

type PollerConfig struct {
	ActiveInterval time.Duration `yaml:"active_interval"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ServerConfig is only read by the mock service.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DBPath          string        `yaml:"db_path"`
	EventInterval   time.Duration `yaml:"event_interval"`
	SnapshotEvery   time.Duration `yaml:"snapshot_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Capture: CaptureConfig{
			Source: SourceSynthetic,
			FPS:    15,
		},
		Sampler: SamplerConfig{
			Mode:        ModeContinuous,
			Interval:    3 * time.Second,
			Region:      224,
			JPEGQuality: 90,
		},
		Poller: PollerConfig{
			ActiveInterval: 5 * time.Second,
		},
		Log: LogConfig{
			File:  "clasificador.log",
			Level: "info",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			DBPath:          ":memory:",
			EventInterval:   2 * time.Second,
			SnapshotEvery:   5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads path on top of the defaults. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate reports the first setting that the console cannot run with.
func (c *Config) Validate() error {
	switch c.Sampler.Mode {
	case ModeContinuous, ModeSingle:
	default:
		return fmt.Errorf("sampler.mode: unknown mode %q", c.Sampler.Mode)
	}
	switch c.Capture.Source {
	case SourceSynthetic:
	case SourceMJPEG:
		if c.Capture.MJPEGURL == "" {
			return errors.New("capture.mjpeg_url is required for the mjpeg source")
		}
	case SourceFile:
		if c.Capture.File == "" {
			return errors.New("capture.file is required for the file source")
		}
	case SourceDevice:
	default:
		return fmt.Errorf("capture.source: unknown source %q", c.Capture.Source)
	}
	if c.Service.BaseURL == "" {
		return errors.New("service.base_url is required")
	}
	if c.Sampler.Interval <= 0 {
		return errors.New("sampler.interval must be positive")
	}
	if c.Poller.ActiveInterval <= 0 {
		return errors.New("poller.active_interval must be positive")
	}
	if c.Sampler.Region <= 0 {
		return errors.New("sampler.region must be positive")
	}
	if c.Sampler.JPEGQuality < 1 || c.Sampler.JPEGQuality > 100 {
		return fmt.Errorf("sampler.jpeg_quality %d out of range 1-100", c.Sampler.JPEGQuality)
	}
	return nil
}

// ListenAddr is the mock service's host:port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
