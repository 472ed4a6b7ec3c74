// Package models resolves ONNX model files across the supported search
// locations.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "MOSAIC_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory path from various sources.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable,
// 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}

	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}

	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}

	return DefaultModelsDir
}

// ResolveModelPath resolves a model reference to a concrete file path. A
// path that exists as given (absolute or relative to the working directory)
// wins; otherwise the file is looked up inside the models directory.
func ResolveModelPath(modelsDir, model string) string {
	if model == "" {
		return ""
	}

	if _, err := os.Stat(model); err == nil {
		return model
	}
	if filepath.IsAbs(model) {
		return model
	}

	return filepath.Join(GetModelsDir(modelsDir), model)
}

// ValidateModelPath checks that the resolved model file exists and is a
// regular file.
func ValidateModelPath(path string) error {
	if path == "" {
		return errors.New("model path is empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("model file not found: %s", path)
		}
		return fmt.Errorf("cannot access model file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("model path is a directory: %s", path)
	}
	return nil
}
