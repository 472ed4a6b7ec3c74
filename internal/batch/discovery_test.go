package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func testTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.png"))
	touch(t, filepath.Join(dir, "b.jpg"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "nested", "c.png"))
	touch(t, filepath.Join(dir, "nested", "d.bmp"))
	return dir
}

func TestDiscoverFlat(t *testing.T) {
	dir := testTree(t)

	files, err := Discover([]string{dir}, false, nil, nil)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.png"), files[0])
	assert.Equal(t, filepath.Join(dir, "b.jpg"), files[1])
}

func TestDiscoverRecursive(t *testing.T) {
	dir := testTree(t)

	files, err := Discover([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestDiscoverIncludePattern(t *testing.T) {
	dir := testTree(t)

	files, err := Discover([]string{dir}, true, []string{"*.png"}, nil)
	require.NoError(t, err)

	require.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, ".png", filepath.Ext(f))
	}
}

func TestDiscoverExcludePattern(t *testing.T) {
	dir := testTree(t)

	files, err := Discover([]string{dir}, true, nil, []string{"c.*"})
	require.NoError(t, err)

	assert.Len(t, files, 3)
	for _, f := range files {
		assert.NotEqual(t, "c.png", filepath.Base(f))
	}
}

func TestDiscoverExplicitFile(t *testing.T) {
	dir := testTree(t)
	path := filepath.Join(dir, "a.png")

	files, err := Discover([]string{path}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestDiscoverMissingPath(t *testing.T) {
	_, err := Discover([]string{"/no/such/path"}, false, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}
