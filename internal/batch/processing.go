package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mosaic/internal/common"
	"github.com/MeKo-Tech/mosaic/internal/pipeline"
	"github.com/MeKo-Tech/mosaic/internal/utils"
)

// processSingleFile loads one image and runs it through the pipeline.
func processSingleFile(ctx context.Context, pl *pipeline.Pipeline, path string) (*pipeline.Result, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	res, err := pl.Run(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detection failed for %s: %w", path, err)
	}
	return res, nil
}

// processFiles runs the discovered files through the pipeline in order. The
// pipeline already saturates the worker pool per image, so files run
// sequentially. With ContinueOnError set, a failing file is recorded and the
// run moves on.
func processFiles(ctx context.Context, pl *pipeline.Pipeline, files []string, config Config) ([]FileResult, error) {
	results := make([]FileResult, 0, len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		timer := common.NewNamedTimer(path)
		res, err := processSingleFile(ctx, pl, path)
		timer.Stop()

		if err != nil {
			if !config.ContinueOnError {
				return nil, err
			}
			slog.Warn("batch file failed, continuing", "file", path, "error", err)
		}

		results = append(results, FileResult{
			Path:     path,
			Result:   res,
			Err:      err,
			Duration: timer.Duration(),
		})
	}

	return results, nil
}
