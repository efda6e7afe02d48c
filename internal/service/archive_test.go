package service

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "game.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		e, err := w.Create(name)
		require.NoError(t, err)
		_, err = e.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return p
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()

	root := t.TempDir()
	viper.Set("storage.extract_root", root)
	viper.Set("archive.max_entry_size", int64(1<<20))

	return &Extractor{Root: root}
}

func extractionRootEmpty(t *testing.T, root string) bool {
	t.Helper()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	return len(entries) == 0
}

func TestExtractValidArchive(t *testing.T) {
	e := newTestExtractor(t)

	zipPath := writeZip(t, map[string]string{
		"index.html":         "<html></html>",
		"game.js":            "console.log('hi')",
		"assets/sprites.png": "png",
	})

	manifest, err := e.Extract(zipPath)
	require.NoError(t, err)

	assert.Equal(t, "index.html", manifest.MainFile)
	assert.Equal(t, 1, manifest.JSCount)
	assert.Len(t, manifest.Files, 3)
	assert.DirExists(t, manifest.ExtractedPath)
	assert.FileExists(t, filepath.Join(manifest.ExtractedPath, "index.html"))
}

func TestExtractMainFileOneLevelDeep(t *testing.T) {
	e := newTestExtractor(t)

	zipPath := writeZip(t, map[string]string{
		"dist/game.html": "<html></html>",
		"dist/main.js":   "void 0",
	})

	manifest, err := e.Extract(zipPath)
	require.NoError(t, err)

	assert.Equal(t, "dist/game.html", manifest.MainFile)
	assert.Equal(t, 1, manifest.JSCount)
}

func TestExtractNoScripts(t *testing.T) {
	e := newTestExtractor(t)

	zipPath := writeZip(t, map[string]string{
		"index.html": "<html></html>",
		"style.css":  "body {}",
	})

	_, err := e.Extract(zipPath)
	assert.ErrorIs(t, err, ErrArchiveNoScripts)
	assert.True(t, extractionRootEmpty(t, e.Root), "failed extraction must leave no directory behind")
}

func TestExtractNoMainFile(t *testing.T) {
	e := newTestExtractor(t)

	zipPath := writeZip(t, map[string]string{
		"start.html": "<html></html>",
		"game.js":    "void 0",
	})

	_, err := e.Extract(zipPath)
	assert.ErrorIs(t, err, ErrArchiveNoMainFile)
	assert.True(t, extractionRootEmpty(t, e.Root))
}

func TestExtractMainFileTooDeep(t *testing.T) {
	e := newTestExtractor(t)

	zipPath := writeZip(t, map[string]string{
		"a/b/index.html": "<html></html>",
		"a/b/game.js":    "void 0",
	})

	_, err := e.Extract(zipPath)
	assert.ErrorIs(t, err, ErrArchiveNoMainFile)
	assert.True(t, extractionRootEmpty(t, e.Root))
}

func TestExtractZipSlip(t *testing.T) {
	e := newTestExtractor(t)

	zipPath := writeZip(t, map[string]string{
		"../evil.js": "void 0",
		"index.html": "<html></html>",
	})

	_, err := e.Extract(zipPath)
	assert.ErrorIs(t, err, ErrArchiveUnsafePath)
	assert.True(t, extractionRootEmpty(t, e.Root))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(e.Root), "evil.js"))
}

func TestExtractBadArchive(t *testing.T) {
	e := newTestExtractor(t)

	p := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(p, []byte("not a zip at all"), 0o644))

	_, err := e.Extract(p)
	assert.Error(t, err)
	assert.True(t, extractionRootEmpty(t, e.Root))
}
