package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "mosaic"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MOSAIC"
)

// Loader reads configuration from files, environment variables and defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings participate in precedence.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from the search paths, environment and defaults,
// then validates it. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.load("")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFile reads configuration from a specific file path and validates
// it. An empty path falls back to the standard search.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) load(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		if configFile != "" {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file: defaults and env vars apply
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/mosaic")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "mosaic"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "mosaic"))
	}
}

// setupEnvironmentVariables configures environment variable handling, e.g.
// MOSAIC_PIPELINE_TILING_TILE_WIDTH for pipeline.tiling.tile_width.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)
	l.v.SetDefault("class_names", defaults.ClassNames)

	l.v.SetDefault("model.model_path", defaults.Model.ModelPath)
	l.v.SetDefault("model.models_dir", defaults.Model.ModelsDir)
	l.v.SetDefault("model.num_threads", defaults.Model.NumThreads)
	l.v.SetDefault("model.gpu.use_gpu", defaults.Model.GPU.UseGPU)
	l.v.SetDefault("model.gpu.device_id", defaults.Model.GPU.DeviceID)
	l.v.SetDefault("model.gpu.gpu_mem_limit", defaults.Model.GPU.GPUMemLimit)
	l.v.SetDefault("model.gpu.arena_extend_strategy", defaults.Model.GPU.ArenaExtendStrategy)
	l.v.SetDefault("model.gpu.cudnn_conv_algo_search", defaults.Model.GPU.CUDNNConvAlgoSearch)
	l.v.SetDefault("model.gpu.do_copy_in_default_stream", defaults.Model.GPU.DoCopyInDefaultStream)

	l.v.SetDefault("pipeline.tiling.tile_width", defaults.Pipeline.Tiling.TileWidth)
	l.v.SetDefault("pipeline.tiling.tile_height", defaults.Pipeline.Tiling.TileHeight)
	l.v.SetDefault("pipeline.tiling.overlap_x", defaults.Pipeline.Tiling.OverlapX)
	l.v.SetDefault("pipeline.tiling.overlap_y", defaults.Pipeline.Tiling.OverlapY)
	l.v.SetDefault("pipeline.tiling.resize_to_original", defaults.Pipeline.Tiling.ResizeToOriginal)

	l.v.SetDefault("pipeline.inference.image_size", defaults.Pipeline.Inference.ImageSize)
	l.v.SetDefault("pipeline.inference.conf_threshold", defaults.Pipeline.Inference.ConfThreshold)
	l.v.SetDefault("pipeline.inference.iou_threshold", defaults.Pipeline.Inference.IoUThreshold)
	l.v.SetDefault("pipeline.inference.segment", defaults.Pipeline.Inference.Segment)

	l.v.SetDefault("pipeline.fusion.match_metric", defaults.Pipeline.Fusion.MatchMetric)
	l.v.SetDefault("pipeline.fusion.nms_threshold", defaults.Pipeline.Fusion.NMSThreshold)
	l.v.SetDefault("pipeline.fusion.intelligent_sorter", defaults.Pipeline.Fusion.IntelligentSorter)

	l.v.SetDefault("pipeline.workers", defaults.Pipeline.Workers)

	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.file", defaults.Output.File)
	l.v.SetDefault("output.tile_dir", defaults.Output.TileDir)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a config file populated with defaults.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoader()
	loader.setDefaults()
	if filename == "" {
		filename = "mosaic.yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are
// searched, in precedence order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home, filepath.Join(home, ".config", "mosaic"))
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "mosaic"))
	}
	return append(paths, "/etc/mosaic")
}
