package support

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/mosaic/internal/testutil"
	"github.com/cucumber/godog"
)

// RegisterCLISteps wires the command-line step definitions.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^a synthetic image "([^"]*)" sized (\d+)x(\d+)$`, testCtx.aSyntheticImage)
	sc.Step(`^I run mosaic with "([^"]*)"$`, testCtx.iRunMosaicWith)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the tile plan should report a (\d+)x(\d+) grid with (\d+) tiles$`,
		testCtx.thePlanShouldReportGrid)
	sc.Step(`^the tile plan should report a (\d+)x(\d+) canvas$`, testCtx.thePlanShouldReportCanvas)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) PNG files$`, testCtx.theDirectoryShouldContainPNGs)
}

// aSyntheticImage renders a synthetic scene PNG and registers it by name.
func (testCtx *TestContext) aSyntheticImage(name string, width, height int) error {
	config := testutil.SceneConfig{
		Width:      width,
		Height:     height,
		Background: color.White,
		Objects: []testutil.SceneObject{
			{X: width / 8, Y: height / 8, Width: width / 4, Height: height / 4,
				Color: color.RGBA{200, 30, 30, 255}},
			{X: width / 2, Y: height / 2, Width: width / 4, Height: height / 4,
				Color: color.RGBA{30, 30, 200, 255}},
		},
	}

	path := filepath.Join(testCtx.TempDir, name)
	file, err := os.Create(path) //nolint:gosec // G304: path is inside the scenario temp dir
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := png.Encode(file, testutil.GenerateScene(config)); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	testCtx.Images[name] = path
	return nil
}

// iRunMosaicWith executes the CLI binary with the given argument string.
// Tokens matching a registered image name are replaced with the image path,
// and tokens prefixed with "tmp:" resolve inside the scenario temp dir.
func (testCtx *TestContext) iRunMosaicWith(argLine string) error {
	args := strings.Fields(argLine)
	for i, arg := range args {
		if path, ok := testCtx.Images[arg]; ok {
			args[i] = path
		} else if rest, ok := strings.CutPrefix(arg, "tmp:"); ok {
			args[i] = filepath.Join(testCtx.TempDir, rest)
		}
	}

	binPath := os.Getenv("MOSAIC_BIN")
	if binPath == "" {
		binPath = "mosaic"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, binPath, args...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	out, err := cmd.CombinedOutput()

	testCtx.LastCommand = binPath + " " + argLine
	testCtx.LastOutput = string(out)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(start)
	if cmd.ProcessState != nil {
		testCtx.LastExitCode = cmd.ProcessState.ExitCode()
	} else {
		testCtx.LastExitCode = -1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed (exit %d): %v\noutput:\n%s",
			testCtx.LastCommand, testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded but was expected to fail\noutput:\n%s",
			testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain %q:\n%s", expected, testCtx.LastOutput)
	}
	return nil
}

// tilePlan mirrors the JSON shape of the tiles command output.
type tilePlan struct {
	SourceWidth  int `json:"source_width"`
	SourceHeight int `json:"source_height"`
	CanvasWidth  int `json:"canvas_width"`
	CanvasHeight int `json:"canvas_height"`
	StepsX       int `json:"steps_x"`
	StepsY       int `json:"steps_y"`
	Tiles        []struct {
		Index  int    `json:"index"`
		Row    int    `json:"row"`
		Col    int    `json:"col"`
		Region string `json:"region"`
	} `json:"tiles"`
}

func (testCtx *TestContext) parsePlan() (*tilePlan, error) {
	var plan tilePlan
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &plan); err != nil {
		return nil, fmt.Errorf("output is not a tile plan: %w\noutput:\n%s", err, testCtx.LastOutput)
	}
	return &plan, nil
}

func (testCtx *TestContext) thePlanShouldReportGrid(stepsX, stepsY, tiles int) error {
	plan, err := testCtx.parsePlan()
	if err != nil {
		return err
	}
	if plan.StepsX != stepsX || plan.StepsY != stepsY {
		return fmt.Errorf("expected %dx%d grid, got %dx%d", stepsX, stepsY, plan.StepsX, plan.StepsY)
	}
	if len(plan.Tiles) != tiles {
		return fmt.Errorf("expected %d tiles, got %d", tiles, len(plan.Tiles))
	}
	return nil
}

func (testCtx *TestContext) thePlanShouldReportCanvas(width, height int) error {
	plan, err := testCtx.parsePlan()
	if err != nil {
		return err
	}
	if plan.CanvasWidth != width || plan.CanvasHeight != height {
		return fmt.Errorf("expected %dx%d canvas, got %dx%d",
			width, height, plan.CanvasWidth, plan.CanvasHeight)
	}
	return nil
}

func (testCtx *TestContext) theDirectoryShouldContainPNGs(dir string, count int) error {
	path := filepath.Join(testCtx.TempDir, dir)
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	found := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			found++
		}
	}
	if found != count {
		return fmt.Errorf("expected %d PNG files in %s, found %d", count, path, found)
	}
	return nil
}
