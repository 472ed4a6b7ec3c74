// Package batch runs the tiled-detection pipeline over many image files.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/mosaic/internal/pipeline"
)

// ProcessBatch discovers image files from the given paths and runs each of
// them through the pipeline.
func ProcessBatch(ctx context.Context, pl *pipeline.Pipeline, paths []string, config Config) (*Result, error) {
	files, err := Discover(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	startTime := time.Now()
	results, err := processFiles(ctx, pl, files, config)
	if err != nil {
		return nil, err
	}

	return &Result{
		Files:    results,
		Duration: time.Since(startTime),
	}, nil
}
