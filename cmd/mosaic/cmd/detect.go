package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/mosaic/internal/batch"
	"github.com/MeKo-Tech/mosaic/internal/config"
	"github.com/MeKo-Tech/mosaic/internal/detect"
	"github.com/MeKo-Tech/mosaic/internal/models"
	"github.com/MeKo-Tech/mosaic/internal/pipeline"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// detectCmd represents the detect command.
var detectCmd = &cobra.Command{
	Use:   "detect [image|directory...]",
	Short: "Run tiled object detection on images",
	Long: `Run tiled object detection on image files or directories.

Each image is sliced into overlapping tiles, the ONNX model runs on every
tile, and per-tile detections are remapped and fused into one result.
Directory arguments are scanned for supported images.

Supported formats: JPEG, PNG, BMP

Examples:
  mosaic detect photo.jpg --model yolov8n.onnx
  mosaic detect ./shots --recursive --include "*.png"
  mosaic detect *.png --model yolov8s-seg.onnx --segment
  mosaic detect huge.jpg --tile-width 512 --overlap-x 30 --format text`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()
		applyDetectFlags(cmd, cfg)

		if cfg.Model.ModelPath == "" {
			return errors.New("no model provided (use --model or the model.model_path config key)")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		batchCfg := batch.DefaultConfig()
		batchCfg.Recursive, _ = cmd.Flags().GetBool("recursive")
		batchCfg.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
		batchCfg.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
		batchCfg.Format = cfg.Output.Format
		batchCfg.OutputFile = cfg.Output.File
		batchCfg.Quiet, _ = cmd.Flags().GetBool("quiet")

		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		res, err := batch.ProcessBatch(ctx, p, args, batchCfg)
		if err != nil {
			return err
		}
		if err := res.SaveResults(batchCfg.Format, batchCfg.OutputFile, batchCfg.Quiet); err != nil {
			return err
		}
		if stats, _ := cmd.Flags().GetBool("stats"); stats {
			res.PrintStats(os.Stderr)
		}
		if res.Failed() > 0 {
			return fmt.Errorf("%d of %d files failed", res.Failed(), len(res.Files))
		}
		return nil
	},
}

// applyDetectFlags layers explicitly-set CLI flags over the loaded config.
func applyDetectFlags(cmd *cobra.Command, cfg *config.Config) {
	flagString(cmd, "model", &cfg.Model.ModelPath)
	flagString(cmd, "models-dir", &cfg.Model.ModelsDir)
	flagInt(cmd, "num-threads", &cfg.Model.NumThreads)
	flagBool(cmd, "gpu", &cfg.Model.GPU.UseGPU)
	flagInt(cmd, "gpu-device", &cfg.Model.GPU.DeviceID)

	flagInt(cmd, "tile-width", &cfg.Pipeline.Tiling.TileWidth)
	flagInt(cmd, "tile-height", &cfg.Pipeline.Tiling.TileHeight)
	flagInt(cmd, "overlap-x", &cfg.Pipeline.Tiling.OverlapX)
	flagInt(cmd, "overlap-y", &cfg.Pipeline.Tiling.OverlapY)
	flagBool(cmd, "resize-to-original", &cfg.Pipeline.Tiling.ResizeToOriginal)

	flagInt(cmd, "image-size", &cfg.Pipeline.Inference.ImageSize)
	flagFloat(cmd, "conf", &cfg.Pipeline.Inference.ConfThreshold)
	flagFloat(cmd, "iou", &cfg.Pipeline.Inference.IoUThreshold)
	flagBool(cmd, "segment", &cfg.Pipeline.Inference.Segment)
	if cmd.Flags().Changed("class-filter") {
		cfg.Pipeline.Inference.ClassFilter, _ = cmd.Flags().GetIntSlice("class-filter")
	}

	flagString(cmd, "match-metric", &cfg.Pipeline.Fusion.MatchMetric)
	flagFloat(cmd, "nms-threshold", &cfg.Pipeline.Fusion.NMSThreshold)
	flagBool(cmd, "intelligent-sorter", &cfg.Pipeline.Fusion.IntelligentSorter)

	flagInt(cmd, "workers", &cfg.Pipeline.Workers)

	flagString(cmd, "format", &cfg.Output.Format)
	flagString(cmd, "output", &cfg.Output.File)
}

// buildPipeline assembles the detection pipeline from configuration.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	modelPath := models.ResolveModelPath(cfg.Model.ModelsDir, cfg.Model.ModelPath)
	if err := models.ValidateModelPath(modelPath); err != nil {
		return nil, err
	}
	cfg.Model.ModelPath = modelPath

	model, err := detect.NewModel(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	classes := detect.DefaultClasses()
	if cfg.ClassNames != "" {
		classes, err = detect.LoadClasses(cfg.ClassNames)
		if err != nil {
			_ = model.Close()
			return nil, err
		}
	}

	p, err := pipeline.NewBuilder().
		WithDetector(model).
		WithClasses(classes).
		WithConfig(cfg.Pipeline).
		Build()
	if err != nil {
		_ = model.Close()
		return nil, err
	}
	return p, nil
}

// flag override helpers: only explicitly set flags replace config values.
func flagString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func flagInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func flagFloat(cmd *cobra.Command, name string, dst *float64) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetFloat64(name)
	}
}

func flagBool(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

func addTilingFlags(cmd *cobra.Command) {
	cmd.Flags().Int("tile-width", 700, "tile width in pixels")
	cmd.Flags().Int("tile-height", 700, "tile height in pixels")
	cmd.Flags().Int("overlap-x", 25, "horizontal tile overlap in percent [0,100)")
	cmd.Flags().Int("overlap-y", 25, "vertical tile overlap in percent [0,100)")
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringP("model", "m", "", "path to the ONNX detection model")
	detectCmd.Flags().String("models-dir", "", "directory searched for relative model paths")
	detectCmd.Flags().Int("num-threads", 0, "intra-op thread count (0 = runtime default)")
	detectCmd.Flags().Bool("gpu", false, "enable CUDA acceleration")
	detectCmd.Flags().Int("gpu-device", 0, "CUDA device id")

	addTilingFlags(detectCmd)
	detectCmd.Flags().Bool("resize-to-original", false,
		"report boxes in original image coordinates instead of canvas coordinates")

	detectCmd.Flags().Int("image-size", 640, "model input size in pixels")
	detectCmd.Flags().Float64("conf", 0.5, "confidence threshold (0..1)")
	detectCmd.Flags().Float64("iou", 0.7, "model-level IoU threshold for per-tile NMS")
	detectCmd.Flags().Bool("segment", false, "enable instance segmentation masks")
	detectCmd.Flags().IntSlice("class-filter", nil, "class ids to keep (empty keeps all)")

	detectCmd.Flags().String("match-metric", "IOS", "fusion overlap metric: IOU or IOS")
	detectCmd.Flags().Float64("nms-threshold", 0.3, "fusion suppression threshold (0..1)")
	detectCmd.Flags().Bool("intelligent-sorter", true,
		"order fusion by rounded confidence, then box area")

	detectCmd.Flags().Int("workers", 0, "concurrent tile inferences (0 = number of CPUs)")

	detectCmd.Flags().BoolP("recursive", "r", false, "scan directory arguments recursively")
	detectCmd.Flags().StringSlice("include", nil, "glob patterns of file names to include")
	detectCmd.Flags().StringSlice("exclude", nil, "glob patterns of file names to exclude")
	detectCmd.Flags().Bool("stats", false, "print processing statistics to stderr")
	detectCmd.Flags().Bool("quiet", false, "suppress non-result output")

	detectCmd.Flags().StringP("format", "f", outputFormatJSON, "output format: json or text")
	detectCmd.Flags().StringP("output", "o", "", "write results to file instead of stdout")
}

// GetDetectCommand returns the detect command for testing purposes.
func GetDetectCommand() *cobra.Command {
	return detectCmd
}
