// Package config provides configuration structures and defaults for sweeptrace
package config

import (
	"fmt"
	"time"

	"sweeptrace/internal/sweep"
)

// Config represents the complete application configuration
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial" yaml:"serial"`   // Instrument serial link
	Buffer  BufferConfig  `mapstructure:"buffer" yaml:"buffer"`   // Sweep buffer sizing
	Axes    AxesConfig    `mapstructure:"axes" yaml:"axes"`       // Initial axis selection
	Export  ExportConfig  `mapstructure:"export" yaml:"export"`   // CSV export destinations
	Render  RenderConfig  `mapstructure:"render" yaml:"render"`   // Chart outputs
	Mirror  MirrorConfig  `mapstructure:"mirror" yaml:"mirror"`   // Sample mirroring
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"` // Logging configuration
}

// SerialConfig contains serial port parameters
type SerialConfig struct {
	Port     string `mapstructure:"port" yaml:"port"`           // Serial port device path, empty means choose later
	BaudRate int    `mapstructure:"baud_rate" yaml:"baud_rate"` // Serial communication baud rate
}

// BufferConfig contains sweep buffer parameters
type BufferConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"` // Retained history samples, current point excluded
}

// AxesConfig holds the selectors shown at startup and restored by reset
type AxesConfig struct {
	X string `mapstructure:"x" yaml:"x"` // e.g. "V1" or "-V1"
	Y string `mapstructure:"y" yaml:"y"`
}

// ExportConfig contains CSV export parameters
type ExportConfig struct {
	Dir string   `mapstructure:"dir" yaml:"dir"` // Local export directory
	S3  S3Config `mapstructure:"s3" yaml:"s3"`   // Optional upload target
}

// S3Config contains S3 upload parameters
type S3Config struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`     // Custom endpoint for S3-compatible stores
	PathStyle       bool   `mapstructure:"path_style" yaml:"path_style"` // Path-style addressing for S3-compatible stores
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// RenderConfig selects the chart outputs
type RenderConfig struct {
	Console bool        `mapstructure:"console" yaml:"console"` // Full-screen terminal view with keyboard controls
	Chart   ChartConfig `mapstructure:"chart" yaml:"chart"`
	Web     WebConfig   `mapstructure:"web" yaml:"web"`
}

// ChartConfig contains PNG chart output parameters
type ChartConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Path        string        `mapstructure:"path" yaml:"path"`                 // PNG file rewritten on updates
	Width       int           `mapstructure:"width" yaml:"width"`               // Pixels
	Height      int           `mapstructure:"height" yaml:"height"`             // Pixels
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"` // Minimum time between rewrites
}

// WebConfig contains websocket live view parameters
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"` // host:port
}

// MirrorConfig contains sample mirroring targets
type MirrorConfig struct {
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig contains redis pub/sub parameters
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Channel  string `mapstructure:"channel" yaml:"channel"` // Pub/sub channel receiving one message per sample
}

// LoggingConfig contains logging configuration parameters
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`               // Log level (debug, info, warn, error)
	Format     string `mapstructure:"format" yaml:"format"`             // text or json
	File       string `mapstructure:"file" yaml:"file"`                 // Log file path, empty or "stderr" for the terminal
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"` // Rotated log retention
}

// DefaultConfig returns a configuration with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "",   // Chosen on the command line or from the console
			BaudRate: 9600, // Instrument default
		},
		Buffer: BufferConfig{
			Capacity: sweep.DefaultCapacity,
		},
		Axes: AxesConfig{
			X: sweep.DefaultX.String(),
			Y: sweep.DefaultY.String(),
		},
		Export: ExportConfig{
			Dir: "./exports",
			S3: S3Config{
				Enabled: false,
				Prefix:  "sweeptrace/",
				Region:  "us-east-1",
			},
		},
		Render: RenderConfig{
			Console: true,
			Chart: ChartConfig{
				Enabled:     false,
				Path:        "./sweeptrace.png",
				Width:       1024,
				Height:      768,
				MinInterval: 500 * time.Millisecond,
			},
			Web: WebConfig{
				Enabled: false,
				Listen:  "127.0.0.1:8642",
			},
		},
		Mirror: MirrorConfig{
			Redis: RedisConfig{
				Enabled: false,
				Addr:    "localhost:6379",
				DB:      0,
				Channel: "sweeptrace:samples",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "sweeptrace.log",
			MaxAgeDays: 7,
		},
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.Serial.BaudRate)
	}
	if c.Buffer.Capacity <= 0 {
		return fmt.Errorf("invalid buffer capacity: %d (must be positive)", c.Buffer.Capacity)
	}
	if _, err := sweep.ParseAxis(c.Axes.X); err != nil {
		return fmt.Errorf("invalid x axis: %w", err)
	}
	if _, err := sweep.ParseAxis(c.Axes.Y); err != nil {
		return fmt.Errorf("invalid y axis: %w", err)
	}
	if c.Export.S3.Enabled && c.Export.S3.Bucket == "" {
		return fmt.Errorf("S3 export enabled but no bucket specified")
	}
	if c.Render.Chart.Enabled {
		if c.Render.Chart.Path == "" {
			return fmt.Errorf("chart output enabled but no path specified")
		}
		if c.Render.Chart.Width <= 0 || c.Render.Chart.Height <= 0 {
			return fmt.Errorf("invalid chart size: %dx%d", c.Render.Chart.Width, c.Render.Chart.Height)
		}
	}
	if c.Render.Web.Enabled && c.Render.Web.Listen == "" {
		return fmt.Errorf("web view enabled but no listen address specified")
	}
	if c.Mirror.Redis.Enabled && (c.Mirror.Redis.Addr == "" || c.Mirror.Redis.Channel == "") {
		return fmt.Errorf("redis mirror enabled but addr or channel missing")
	}
	return nil
}

// XAxis returns the parsed x selector, falling back to the default
func (c *Config) XAxis() sweep.Axis {
	if a, err := sweep.ParseAxis(c.Axes.X); err == nil {
		return a
	}
	return sweep.DefaultX
}

// YAxis returns the parsed y selector, falling back to the default
func (c *Config) YAxis() sweep.Axis {
	if a, err := sweep.ParseAxis(c.Axes.Y); err == nil {
		return a
	}
	return sweep.DefaultY
}
