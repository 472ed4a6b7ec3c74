package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SceneObject is one solid rectangle placed into a synthetic scene.
type SceneObject struct {
	X      int
	Y      int
	Width  int
	Height int
	Color  color.Color
}

// SceneConfig holds configuration for generating synthetic detection scenes.
type SceneConfig struct {
	Width      int
	Height     int
	Background color.Color
	Objects    []SceneObject
}

// DefaultSceneConfig returns a scene with two well separated objects.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Width:      640,
		Height:     480,
		Background: color.White,
		Objects: []SceneObject{
			{X: 50, Y: 50, Width: 120, Height: 80, Color: color.RGBA{200, 30, 30, 255}},
			{X: 400, Y: 280, Width: 100, Height: 140, Color: color.RGBA{30, 30, 200, 255}},
		},
	}
}

// GenerateScene renders a synthetic scene image from the configuration.
func GenerateScene(config SceneConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, config.Width, config.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	for _, obj := range config.Objects {
		r := image.Rect(obj.X, obj.Y, obj.X+obj.Width, obj.Y+obj.Height)
		draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{obj.Color}, image.Point{}, draw.Src)
	}
	return img
}

// CreateTestImage creates a uniformly colored image of the given size.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	err = png.Encode(file, img)
	require.NoError(t, err, "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// WriteScenePNG generates a scene and writes it as PNG, returning the path.
func WriteScenePNG(t *testing.T, dir string, config SceneConfig) string {
	t.Helper()

	path := filepath.Join(dir, fmt.Sprintf("scene_%dx%d.png", config.Width, config.Height))
	SaveImage(t, GenerateScene(config), path)
	return path
}

// CompareImages compares two images and returns true if they are similar.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()

	if bounds1 != bounds2 {
		return false
	}

	var totalDiff float64
	var pixelCount float64

	for y := bounds1.Min.Y; y < bounds1.Max.Y; y++ {
		for x := bounds1.Min.X; x < bounds1.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			diff := math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			totalDiff += diff
			pixelCount++
		}
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535)

	return (avgDiff / maxDiff) <= tolerance
}
