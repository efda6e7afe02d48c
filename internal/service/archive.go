package service

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"buscatalog/media-api/pkg/util"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	ErrArchiveNoMainFile = errors.New("no recognized entry point found in archive")
	ErrArchiveNoScripts  = errors.New("archive contains no JavaScript files")
	ErrArchiveUnsafePath = errors.New("archive entry escapes the extraction directory")
)

// Entry point candidates, in lookup order
var mainFileCandidates = []string{"index.html", "index.htm", "game.html", "main.html"}

// GameManifest is the result of a successful extraction. It gets
// embedded into the content record's metadata and is only regenerated
// when the archive is re-uploaded.
type GameManifest struct {
	ExtractedPath string   `json:"extracted_path"`
	MainFile      string   `json:"main_file"`
	Files         []string `json:"game_files"`
	JSCount       int      `json:"js_count"`
}

// Extractor unpacks and vets uploaded game archives.
type Extractor struct {
	Root string
}

func NewExtractor() *Extractor {
	return &Extractor{Root: viper.GetString("storage.extract_root")}
}

// Extract unpacks a game zip into a fresh sandbox directory and
// validates it: the archive must open, carry a conventional HTML entry
// point at the root or one level deep, and contain at least one .js
// file at that depth. On any failure the sandbox is removed completely
// before the error is returned.
func (e *Extractor) Extract(zipPath string) (*GameManifest, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		// The stdlib flags ../ entry names itself but still hands back
		// a usable reader; our own containment check below decides
		if !errors.Is(err, zip.ErrInsecurePath) {
			return nil, fmt.Errorf("failed to open archive, %w", err)
		}
	}
	defer r.Close()

	dest := filepath.Join(e.Root, util.NewID())
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory, %w", err)
	}

	manifest, err := e.unpack(&r.Reader, dest)
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			zap.L().Error("Failed to remove extraction directory after failed extract",
				zap.String("dir", dest), zap.Error(rmErr))
		}
		return nil, err
	}

	manifest.MainFile, err = findMainFile(manifest.Files)
	if err == nil && manifest.JSCount == 0 {
		err = ErrArchiveNoScripts
	}
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			zap.L().Error("Failed to remove extraction directory after failed validation",
				zap.String("dir", dest), zap.Error(rmErr))
		}
		return nil, err
	}

	zap.L().Debug("Extracted game archive",
		zap.String("dir", dest),
		zap.String("main", manifest.MainFile),
		zap.Int("files", len(manifest.Files)),
		zap.Int("js", manifest.JSCount))

	return manifest, nil
}

func (e *Extractor) unpack(r *zip.Reader, dest string) (*GameManifest, error) {
	maxEntry := viper.GetInt64("archive.max_entry_size")

	manifest := &GameManifest{ExtractedPath: dest}

	for _, f := range r.File {
		target, err := sanitizeEntryPath(dest, f.Name)
		if err != nil {
			return nil, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s, %w", f.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create parent directory for %s, %w", f.Name, err)
		}

		src, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %s, %w", f.Name, err)
		}

		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("failed to create %s, %w", f.Name, err)
		}

		// LimitReader guards against decompression bombs lying about
		// their uncompressed size
		written, err := io.Copy(dst, io.LimitReader(src, maxEntry+1))
		src.Close()
		dst.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s, %w", f.Name, err)
		}

		if written > maxEntry {
			return nil, fmt.Errorf("archive entry %s exceeds the size limit", f.Name)
		}

		rel := filepath.ToSlash(filepath.Clean(f.Name))
		manifest.Files = append(manifest.Files, rel)

		if archiveDepth(rel) <= 1 && strings.HasSuffix(strings.ToLower(rel), ".js") {
			manifest.JSCount++
		}
	}

	return manifest, nil
}

// sanitizeEntryPath resolves an archive entry name under dest and
// rejects anything that would land outside it (zip-slip).
func sanitizeEntryPath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))

	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrArchiveUnsafePath, name)
	}

	return target, nil
}

// findMainFile searches the candidate list at the archive root, then
// one level into subdirectories.
func findMainFile(files []string) (string, error) {
	for depth := 0; depth <= 1; depth++ {
		for _, candidate := range mainFileCandidates {
			for _, f := range files {
				if archiveDepth(f) != depth {
					continue
				}

				if strings.EqualFold(filepath.Base(f), candidate) {
					return f, nil
				}
			}
		}
	}

	return "", ErrArchiveNoMainFile
}

func archiveDepth(rel string) int {
	return strings.Count(rel, "/")
}
