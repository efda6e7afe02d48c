// Package service contains the media pipeline stages that run behind
// the HTTP handlers
package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"buscatalog/media-api/pkg/util"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Storage failure modes callers must tell apart
var (
	ErrTempUnavailable = errors.New("temporary storage unavailable")
	ErrPartialUpload   = errors.New("partial transfer, fewer bytes arrived than announced")
	ErrWriteFailed     = errors.New("failed to write upload to disk")
)

// Store owns the content storage tree. Every content type gets its own
// subdirectory under the root.
type Store struct {
	Root string
}

func NewStore() *Store {
	return &Store{Root: viper.GetString("storage.root")}
}

// StoredFile describes one successfully stored upload.
type StoredFile struct {
	ID   string
	Path string
	Size int64
	Hash string
}

// TypeDir returns the directory files of a content type live in.
func (s *Store) TypeDir(typ string) string {
	return filepath.Join(s.Root, typ+"s")
}

// SaveUpload moves an uploaded payload into the storage tree and
// computes its sha256. The bytes go through a temp file in the target
// directory first and are renamed into place, so a crash never leaves
// a half-written file under the final name. On any failure nothing is
// left behind.
func (s *Store) SaveUpload(fh *multipart.FileHeader, typ string, nameSuffix string) (*StoredFile, error) {
	dir := s.TypeDir(typ)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempUnavailable, err)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open multipart file, %w", err)
	}
	defer src.Close()

	id := util.NewID()
	ext := strings.ToLower(path.Ext(fh.Filename))
	finalPath := filepath.Join(dir, id+nameSuffix+ext)

	temp, err := os.CreateTemp(dir, "incoming-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempUnavailable, err)
	}
	tempPath := temp.Name()

	cleanup := func() {
		temp.Close()
		os.Remove(tempPath)
	}

	hasher := sha256.New()

	written, err := io.Copy(io.MultiWriter(temp, hasher), src)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	// A short write means the transfer was cut off mid-flight
	if written != fh.Size {
		cleanup()
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrPartialUpload, written, fh.Size)
	}

	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	zap.L().Debug("Stored upload",
		zap.String("path", finalPath),
		zap.Int64("size", written))

	return &StoredFile{
		ID:   id,
		Path: finalPath,
		Size: written,
		Hash: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// HashFile recomputes the sha256 of a stored file.
func (s *Store) HashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing, %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file, %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Remove deletes a file, treating an already-missing file as success.
func (s *Store) Remove(p string) error {
	if p == "" {
		return nil
	}

	err := os.Remove(p)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// RemoveDir recursively deletes a directory, refusing paths outside
// the extraction root so a bad metadata blob can't nuke the system.
func (s *Store) RemoveDir(p string) error {
	if p == "" {
		return nil
	}

	root, err := filepath.Abs(viper.GetString("storage.extract_root"))
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return err
	}

	if abs != root && !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to remove directory outside extraction root: %s", p)
	}

	return os.RemoveAll(abs)
}

// Exists reports whether a path is present on disk.
func (s *Store) Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
