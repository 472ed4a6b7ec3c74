package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"bad output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"bad tile width", func(c *Config) { c.Pipeline.Tiling.TileWidth = 0 }, "pipeline"},
		{"bad match metric", func(c *Config) { c.Pipeline.Fusion.MatchMetric = "DIOU" }, "pipeline"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"bad upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }, "upload"},
		{"bad timeout", func(c *Config) { c.Server.TimeoutSec = -1 }, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Model.ModelPath = "/models/yolov8s-seg.onnx"
	cfg.Pipeline.Tiling.TileWidth = 512
	cfg.Pipeline.Inference.Segment = true
	cfg.Pipeline.Fusion.MatchMetric = "IOU"

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, cfg.LogLevel, decoded.LogLevel)
	assert.Equal(t, cfg.Model.ModelPath, decoded.Model.ModelPath)
	assert.Equal(t, cfg.Pipeline.Tiling.TileWidth, decoded.Pipeline.Tiling.TileWidth)
	assert.True(t, decoded.Pipeline.Inference.Segment)
	assert.Equal(t, "IOU", decoded.Pipeline.Fusion.MatchMetric)
}

func TestServerConfigValidate(t *testing.T) {
	s := DefaultConfig().Server
	require.NoError(t, s.Validate())

	s.Port = 70000
	require.Error(t, s.Validate())
}
