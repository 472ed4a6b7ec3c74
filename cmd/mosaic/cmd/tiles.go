package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/mosaic/internal/tiler"
	"github.com/MeKo-Tech/mosaic/internal/utils"
	"github.com/spf13/cobra"
)

// tileInfo is one grid cell in the tiles command output.
type tileInfo struct {
	Index  int    `json:"index"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Region string `json:"region"`
}

// tilePlanJSON is the tiles command JSON output.
type tilePlanJSON struct {
	SourceWidth  int        `json:"source_width"`
	SourceHeight int        `json:"source_height"`
	CanvasWidth  int        `json:"canvas_width"`
	CanvasHeight int        `json:"canvas_height"`
	StepsX       int        `json:"steps_x"`
	StepsY       int        `json:"steps_y"`
	Tiles        []tileInfo `json:"tiles"`
}

// tilesCmd represents the tiles command.
var tilesCmd = &cobra.Command{
	Use:   "tiles [image]",
	Short: "Show the tile grid an image would be sliced into",
	Long: `Compute and print the overlapping tile grid for an image without
running any inference. Useful for choosing tile size and overlap.

Examples:
  mosaic tiles photo.jpg
  mosaic tiles photo.jpg --tile-width 512 --overlap-x 30
  mosaic tiles photo.jpg --tile-dir ./tiles`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input file provided")
		}

		cfg := GetConfig()
		flagInt(cmd, "tile-width", &cfg.Pipeline.Tiling.TileWidth)
		flagInt(cmd, "tile-height", &cfg.Pipeline.Tiling.TileHeight)
		flagInt(cmd, "overlap-x", &cfg.Pipeline.Tiling.OverlapX)
		flagInt(cmd, "overlap-y", &cfg.Pipeline.Tiling.OverlapY)
		flagString(cmd, "format", &cfg.Output.Format)
		flagString(cmd, "tile-dir", &cfg.Output.TileDir)

		img, _, err := utils.LoadImage(args[0])
		if err != nil {
			return err
		}

		plan, err := tiler.Generate(img, cfg.Pipeline.Tiling)
		if err != nil {
			return err
		}

		if cfg.Output.TileDir != "" {
			if err := dumpTiles(plan, cfg.Output.TileDir); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if cfg.Output.Format == outputFormatText {
			fmt.Fprintf(out, "Source: %dx%d, canvas: %dx%d, grid: %dx%d (%d tiles)\n",
				plan.Grid.SourceWidth, plan.Grid.SourceHeight,
				plan.Grid.CanvasWidth, plan.Grid.CanvasHeight,
				plan.Grid.StepsX, plan.Grid.StepsY, len(plan.Crops))
			for _, c := range plan.Crops {
				fmt.Fprintf(out, "  tile %d: %s\n", c.Index, c.Rect.String())
			}
			return nil
		}

		res := tilePlanJSON{
			SourceWidth:  plan.Grid.SourceWidth,
			SourceHeight: plan.Grid.SourceHeight,
			CanvasWidth:  plan.Grid.CanvasWidth,
			CanvasHeight: plan.Grid.CanvasHeight,
			StepsX:       plan.Grid.StepsX,
			StepsY:       plan.Grid.StepsY,
			Tiles:        make([]tileInfo, 0, len(plan.Crops)),
		}
		for _, c := range plan.Crops {
			row := (c.Index - 1) / plan.Grid.StepsX
			col := (c.Index - 1) % plan.Grid.StepsX
			res.Tiles = append(res.Tiles, tileInfo{
				Index:  c.Index,
				Row:    row + 1,
				Col:    col + 1,
				Region: c.Rect.String(),
			})
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// dumpTiles writes each crop as a PNG into dir.
func dumpTiles(plan *tiler.Plan, dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create tile directory: %w", err)
	}
	for _, c := range plan.Crops {
		name := filepath.Join(dir, fmt.Sprintf("tile_%03d.png", c.Index))
		if err := utils.SaveImage(c.Local, name); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(tilesCmd)

	addTilingFlags(tilesCmd)
	tilesCmd.Flags().StringP("format", "f", outputFormatJSON, "output format: json or text")
	tilesCmd.Flags().String("tile-dir", "", "write each tile as a PNG into this directory")
}

// GetTilesCommand returns the tiles command for testing purposes.
func GetTilesCommand() *cobra.Command {
	return tilesCmd
}
