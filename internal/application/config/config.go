// ABOUTME: YAML configuration parsing and validation
// ABOUTME: Defines structure for the bridge, its producer, transmitter and HTTP surface
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harper/rpitx-bridge/internal/domain/endpoint"
	"github.com/harper/rpitx-bridge/internal/domain/period"
)

type Config struct {
	Listen      ListenConfig      `yaml:"listen"`
	Device      DeviceConfig      `yaml:"device"`
	Settings    SettingsConfig    `yaml:"settings"`
	Source      SourceConfig      `yaml:"source"`
	Transmitter TransmitterConfig `yaml:"transmitter"`
	Tuning      TuningConfig      `yaml:"tuning"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DeviceConfig struct {
	FIFOPath string `yaml:"fifo_path"`
	PollMs   int    `yaml:"poll_ms"`
}

type SettingsConfig struct {
	Frequency uint32 `yaml:"frequency"`
	Harmonic  uint32 `yaml:"harmonic"`
}

type SourceConfig struct {
	Endpoint         string            `yaml:"endpoint"`
	Kind             string            `yaml:"kind"`
	Path             string            `yaml:"path"`
	URL              string            `yaml:"url"`
	Headers          map[string]string `yaml:"headers"`
	ConnectTimeoutMs int               `yaml:"connect_timeout_ms"`
	Loop             bool              `yaml:"loop"`
}

type TransmitterConfig struct {
	Enabled    bool       `yaml:"enabled"`
	ReadBytes  int        `yaml:"read_bytes"`
	IdleMs     int        `yaml:"idle_ms"`
	SampleRate uint       `yaml:"sample_rate"`
	Sink       SinkConfig `yaml:"sink"`
}

type SinkConfig struct {
	Kind string `yaml:"kind"`
	Dir  string `yaml:"dir"`
}

type TuningConfig struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills every unset field with the value the bridge ships with.
func (c *Config) ApplyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8073
	}
	if c.Device.PollMs == 0 {
		c.Device.PollMs = 5
	}
	if c.Settings.Frequency == 0 {
		c.Settings.Frequency = 14000000
	}
	if c.Settings.Harmonic == 0 {
		c.Settings.Harmonic = 1
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "none"
	}
	if c.Source.Endpoint == "" {
		c.Source.Endpoint = "usbdata"
	}
	if c.Source.ConnectTimeoutMs == 0 {
		c.Source.ConnectTimeoutMs = 5000
	}
	if c.Transmitter.ReadBytes == 0 {
		c.Transmitter.ReadBytes = 8000
	}
	if c.Transmitter.IdleMs == 0 {
		c.Transmitter.IdleMs = 10
	}
	if c.Transmitter.SampleRate == 0 {
		c.Transmitter.SampleRate = 44100
	}
	if c.Transmitter.Sink.Kind == "" {
		c.Transmitter.Sink.Kind = "discard"
	}
	if c.Transmitter.Sink.Dir == "" {
		c.Transmitter.Sink.Dir = "captures"
	}
	if c.Tuning.TimeoutMs == 0 {
		c.Tuning.TimeoutMs = 2000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}

	if _, err := endpoint.Parse(c.Source.Endpoint); err != nil {
		return fmt.Errorf("source.endpoint: %w", err)
	}
	switch c.Source.Kind {
	case "none":
	case "wav":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for wav sources")
		}
	case "http":
		if c.Source.URL == "" {
			return fmt.Errorf("source.url is required for http sources")
		}
	default:
		return fmt.Errorf("source.kind %q is not one of none, wav, http", c.Source.Kind)
	}

	if c.Transmitter.ReadBytes < period.IQBytes {
		return fmt.Errorf("transmitter.read_bytes must be at least %d", period.IQBytes)
	}
	if c.Transmitter.SampleRate < period.RateMin || c.Transmitter.SampleRate > period.RateMax {
		return fmt.Errorf("transmitter.sample_rate %d outside %d-%d", c.Transmitter.SampleRate, period.RateMin, period.RateMax)
	}
	if c.Transmitter.Enabled && c.Device.FIFOPath != "" {
		return fmt.Errorf("device.fifo_path and transmitter.enabled both drain the device node; pick one")
	}
	switch c.Transmitter.Sink.Kind {
	case "wav", "parquet", "discard":
	default:
		return fmt.Errorf("transmitter.sink.kind %q is not one of wav, parquet, discard", c.Transmitter.Sink.Kind)
	}

	switch c.Logging.Level {
	case "none", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("logging.level %q is not one of none, error, warn, info, debug", c.Logging.Level)
	}

	return nil
}
