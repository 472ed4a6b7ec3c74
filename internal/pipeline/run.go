package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/mosaic/internal/detect"
	"github.com/MeKo-Tech/mosaic/internal/fuse"
	"github.com/MeKo-Tech/mosaic/internal/tiler"
)

// Result is the fused per-image detection set plus run diagnostics.
type Result struct {
	*fuse.Result

	SourceWidth  int
	SourceHeight int
	CanvasWidth  int
	CanvasHeight int
	Crops        int
	// SkippedTiles counts tiles discarded by the tiler's bounds check.
	SkippedTiles int
	// FailedCrops counts crops whose inference failed; each contributed an
	// empty detection instead of aborting the run.
	FailedCrops    int
	ProcessingTime time.Duration
}

// Run executes the full tiled-detection pipeline on one image: tiling,
// per-crop inference on a bounded worker pool, coordinate remapping, and
// fusion. Inference failures for individual crops are logged and counted
// but never abort the run.
func (p *Pipeline) Run(ctx context.Context, img image.Image) (*Result, error) {
	return p.RunWithProgress(ctx, img, p.progress)
}

// RunWithProgress is Run with a per-call progress callback, overriding any
// callback registered via OnProgress.
func (p *Pipeline) RunWithProgress(ctx context.Context, img image.Image, progress ProgressFunc) (*Result, error) {
	if img == nil {
		return nil, errors.New("no image provided")
	}
	start := time.Now()

	plan, err := tiler.Generate(img, p.cfg.Tiling)
	if err != nil {
		return nil, fmt.Errorf("tiling: %w", err)
	}

	failed, err := p.inferCrops(ctx, plan.Crops, progress)
	if err != nil {
		return nil, err
	}

	for _, c := range plan.Crops {
		c.RemapToCanvas(plan.Grid.CanvasWidth, plan.Grid.CanvasHeight)
		if p.cfg.Tiling.ResizeToOriginal {
			c.ScaleToOriginal(plan.Grid)
		}
	}

	fused, err := fuse.Fuse(plan.Crops, p.classes, p.cfg.Fusion)
	if err != nil {
		return nil, fmt.Errorf("fusion: %w", err)
	}

	res := &Result{
		Result:         fused,
		SourceWidth:    plan.Grid.SourceWidth,
		SourceHeight:   plan.Grid.SourceHeight,
		CanvasWidth:    plan.Grid.CanvasWidth,
		CanvasHeight:   plan.Grid.CanvasHeight,
		Crops:          len(plan.Crops),
		SkippedTiles:   plan.Skipped,
		FailedCrops:    failed,
		ProcessingTime: time.Since(start),
	}

	slog.Debug("tiled detection complete",
		"crops", res.Crops,
		"skipped_tiles", res.SkippedTiles,
		"failed_crops", res.FailedCrops,
		"detections", fused.Len(),
		"duration", res.ProcessingTime)

	return res, nil
}

// ProgressFunc is invoked after each crop finishes inference, with the
// number of crops done so far and the total.
type ProgressFunc func(done, total int)

// OnProgress registers a callback streamed per finished crop. Pass nil to
// clear it. The callback may be invoked from multiple goroutines.
func (p *Pipeline) OnProgress(fn ProgressFunc) { p.progress = fn }

// inferCrops runs the detector over all crops, bounded by the configured
// worker count. A crop whose inference fails (or whose detection lists are
// not co-indexed) is attached an empty detection.
func (p *Pipeline) inferCrops(ctx context.Context, crops []*tiler.Crop, progress ProgressFunc) (int, error) {
	if len(crops) == 0 {
		return 0, nil
	}
	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(crops))

	jobs := make(chan *tiler.Crop, len(crops))
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
		done   atomic.Int64
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					return
				}
				det, err := p.detector.Infer(ctx, c.Local, p.cfg.Inference)
				if err == nil {
					err = det.Validate()
				}
				if err != nil {
					slog.Warn("crop inference failed, continuing with empty detection",
						"tile", c.Index, "error", err)
					det = detect.Detection{}
					failed.Add(1)
				}
				c.AttachDetection(det)
				if progress != nil {
					progress(int(done.Add(1)), len(crops))
				}
			}
		}()
	}

	for _, c := range crops {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return int(failed.Load()), err
	}
	return int(failed.Load()), nil
}
