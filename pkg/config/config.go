// Package config holds the application configuration: sensor selection,
// negotiation timeouts, stream toggles, and logging.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration, loadable from YAML.
type Config struct {
	Sensor   SensorConfig  `yaml:"sensor"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Stream   StreamConfig  `yaml:"stream"`
	LogLevel string        `yaml:"log_level" default:"info"`
}

// SensorConfig selects which peripheral to use.
type SensorConfig struct {
	// NamePrefix filters advertisements during scanning.
	NamePrefix string `yaml:"name_prefix" default:"Polar"`
	// Address skips scanning and dials the peripheral directly.
	Address string `yaml:"address"`
}

// TimeoutConfig bounds each negotiation step in milliseconds. The
// transport itself assumes no timeout; a zero here would hang on a dead
// peripheral, so Validate rejects it.
type TimeoutConfig struct {
	ConnectMs  int `yaml:"connect_ms" default:"10000"`
	DiscoverMs int `yaml:"discover_ms" default:"10000"`
	WriteMs    int `yaml:"write_ms" default:"10000"`
}

// Connect returns the connect timeout.
func (t TimeoutConfig) Connect() time.Duration { return time.Duration(t.ConnectMs) * time.Millisecond }

// Discover returns the service discovery timeout.
func (t TimeoutConfig) Discover() time.Duration {
	return time.Duration(t.DiscoverMs) * time.Millisecond
}

// Write returns the per-command control write timeout.
func (t TimeoutConfig) Write() time.Duration { return time.Duration(t.WriteMs) * time.Millisecond }

// StreamConfig toggles the measurement streams and sizes the notification
// queue.
type StreamConfig struct {
	ECG       bool `yaml:"ecg" default:"true"`
	ACC       bool `yaml:"acc" default:"true"`
	HeartRate bool `yaml:"heart_rate"`
	QueueSize int  `yaml:"queue_size" default:"256"`
}

// DefaultConfig returns the configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration correctness. It performs declarative
// validation only and does not mutate the configuration.
func (c *Config) Validate() error {
	if c.Sensor.NamePrefix == "" && c.Sensor.Address == "" {
		return fmt.Errorf("sensor: name_prefix or address must be set")
	}
	if c.Timeouts.ConnectMs <= 0 {
		return fmt.Errorf("timeouts: connect_ms must be positive")
	}
	if c.Timeouts.DiscoverMs <= 0 {
		return fmt.Errorf("timeouts: discover_ms must be positive")
	}
	if c.Timeouts.WriteMs <= 0 {
		return fmt.Errorf("timeouts: write_ms must be positive")
	}
	if c.Stream.QueueSize <= 0 {
		return fmt.Errorf("stream: queue_size must be positive")
	}
	if !c.Stream.ECG && !c.Stream.ACC && !c.Stream.HeartRate {
		return fmt.Errorf("stream: at least one of ecg, acc, heart_rate must be enabled")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// NewLogger creates a logger configured from the LogLevel field.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
