// Package config holds the application configuration for the mosaic CLI and
// server, loaded from files, environment variables and flags.
package config

import (
	"fmt"

	"github.com/MeKo-Tech/mosaic/internal/detect"
	"github.com/MeKo-Tech/mosaic/internal/pipeline"
)

// Config is the complete mosaic application configuration. All commands
// (detect, tiles, serve) share it; it loads from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel   string `mapstructure:"log_level"   yaml:"log_level"   json:"log_level"`
	Verbose    bool   `mapstructure:"verbose"     yaml:"verbose"     json:"verbose"`
	ClassNames string `mapstructure:"class_names" yaml:"class_names" json:"class_names"`

	// ONNX model settings
	Model detect.ModelConfig `mapstructure:"model" yaml:"model" json:"model"`

	// Tiling, inference and fusion settings
	Pipeline pipeline.Config `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// OutputConfig contains result output settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "json" or "text"
	File   string `mapstructure:"file"   yaml:"file"   json:"file"`
	// TileDir, when set, receives one PNG per generated crop.
	TileDir string `mapstructure:"tile_dir" yaml:"tile_dir" json:"tile_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host"             yaml:"host"             json:"host"`
	Port            int    `mapstructure:"port"             yaml:"port"             json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin"      yaml:"cors_origin"      json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb"    yaml:"max_upload_mb"    json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec"      yaml:"timeout_sec"      json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns the complete default configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Model:    detect.DefaultModelConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Output: OutputConfig{
			Format: "json",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
		},
	}
}

// Validate checks the whole configuration tree. The model path is only
// required by commands that actually load a model, so it is checked
// separately via Model.Validate.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", c.LogLevel)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	switch c.Output.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid output format: %s (must be json or text)", c.Output.Format)
	}

	return c.Server.Validate()
}

// Validate checks the server settings.
func (s ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}
	if s.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", s.MaxUploadMB)
	}
	if s.TimeoutSec <= 0 {
		return fmt.Errorf("server timeout must be positive, got %d", s.TimeoutSec)
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %d", s.ShutdownTimeout)
	}
	return nil
}
