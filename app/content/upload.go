// Package content contains the handler bodies behind /api/contents
package content

import (
	"errors"
	"net/http"
	"path/filepath"

	"buscatalog/media-api/internal"
	"buscatalog/media-api/internal/model"
	"buscatalog/media-api/internal/service"
	"buscatalog/media-api/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContentUpload runs the full ingestion pipeline: validate the form
// and file, store it, hash it, extract (games), probe, thumbnail,
// create the record and (movies) enqueue the transcode job. Any
// failure after the file hit disk removes everything written so no
// orphaned files outlive a missing record.
func ContentUpload(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var fields validators.ContentFields
	if err := c.ShouldBind(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed form data",
			"requestID": requestID,
		})
		return
	}

	typ := c.PostForm("type")

	if err := validators.ContentValidator(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"code":      validators.DiagCode(err),
			"requestID": requestID,
		})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to open multipart file", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if code, err := validators.UploadValidator(typ, fh); err != nil {
		c.JSON(code, gin.H{
			"error":     err.Error(),
			"code":      validators.DiagCode(err),
			"requestID": requestID,
		})
		return
	}

	stored, err := d.Store.SaveUpload(fh, typ, "")
	if err != nil {
		c.JSON(storeFailureStatus(err), gin.H{
			"error":     err.Error(),
			"code":      validators.DiagCode(err),
			"requestID": requestID,
		})

		zap.L().Error("Failed to store upload", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	// Everything written from here on gets removed if the pipeline
	// can't finish
	written := []string{stored.Path}
	var extractedDir string

	rollback := func() {
		for _, p := range written {
			if err := d.Store.Remove(p); err != nil {
				zap.L().Error("Rollback failed to remove file", zap.String("path", p), zap.Error(err))
			}
		}
		if extractedDir != "" {
			if err := d.Store.RemoveDir(extractedDir); err != nil {
				zap.L().Error("Rollback failed to remove extraction dir", zap.String("dir", extractedDir), zap.Error(err))
			}
		}
	}

	metadata := model.JSONMap{}
	var manifest *service.GameManifest

	if typ == model.TypeGame {
		manifest, err = d.Extractor.Extract(stored.Path)
		if err != nil {
			rollback()

			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Game archive rejected: " + err.Error(),
				"code":      "ARCHIVE_VALIDATION_FAILED",
				"requestID": requestID,
			})
			return
		}

		extractedDir = manifest.ExtractedPath
		metadata["extracted_path"] = manifest.ExtractedPath
		metadata["main_file"] = manifest.MainFile
		metadata["game_files"] = manifest.Files
		metadata["js_count"] = manifest.JSCount
	}

	// Probe failures are degraded data, not errors: the record simply
	// carries duration 0
	var duration float64
	if typ != model.TypeGame {
		probe, probeErr := d.Prober.Probe(c.Request.Context(), stored.Path)
		if probeErr == nil {
			duration = probe.DurationSeconds
			if probe.Width > 0 {
				metadata["width"] = probe.Width
				metadata["height"] = probe.Height
				metadata["codec"] = probe.Codec
			}
			if len(probe.Tags) > 0 {
				metadata["tags"] = probe.Tags
			}
		}
	}

	thumbBase := filepath.Join(d.Store.Root, "thumbnails", stored.ID)
	thumbPath, deferred := saveThumbnail(c, d, typ, stored, extractedDir, fields.Genre, thumbBase)
	written = append(written, thumbPath)
	if deferred {
		metadata["screenshot_pending"] = true
	}

	trailerPath, ok := saveTrailer(c, d, typ, requestID)
	if !ok {
		rollback()
		return
	}
	if trailerPath != "" {
		written = append(written, trailerPath)
	}

	state := model.StateActive
	if typ == model.TypeMovie {
		state = model.StateProcessing
	}

	record := &model.Content{
		ID:              stored.ID,
		Title:           fields.Title,
		Description:     fields.Description,
		Type:            typ,
		Category:        fields.Category,
		Genre:           fields.Genre,
		ReleaseYear:     fields.ReleaseYear,
		Rating:          fields.Rating,
		FilePath:        stored.Path,
		FileSize:        stored.Size,
		DurationSeconds: duration,
		ContentHash:     stored.Hash,
		ThumbnailPath:   thumbPath,
		TrailerPath:     trailerPath,
		State:           state,
		Metadata:        metadata,
	}

	if err := d.DB.Create(record).Error; err != nil {
		rollback()

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to create the content record",
			"code":      "PERSISTENCE_FAILED",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create content record", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if typ == model.TypeMovie {
		if err := d.Transcoder.Schedule(record); err != nil {
			// The movie stays usable at source quality, don't strand
			// it in processing
			zap.L().Error("Failed to schedule transcode job",
				zap.String("content_id", record.ID), zap.Error(err))

			metadata["processing_error"] = "failed to schedule transcoding"
			d.DB.Model(model.Content{}).
				Where("id = ?", record.ID).
				Updates(map[string]any{
					"state":    model.StateActive,
					"metadata": metadata,
				})
		}
	}

	zap.L().Info("Content ingested",
		zap.String("content_id", record.ID),
		zap.String("type", typ),
		zap.Int64("size", stored.Size))

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"content_id": record.ID,
	})
}

// saveThumbnail prefers an admin supplied override image and falls
// back to the generator, which itself never fails.
func saveThumbnail(c *gin.Context, d *internal.Deps, typ string, stored *service.StoredFile, extractedDir, genre, thumbBase string) (string, bool) {
	override, err := c.FormFile("thumbnail")
	if err == nil && override != nil {
		saved, saveErr := d.Store.SaveUpload(override, "thumbnail", "")
		if saveErr == nil {
			return saved.Path, false
		}

		zap.L().Warn("Failed to store thumbnail override, generating one instead", zap.Error(saveErr))
	}

	return d.Thumbnailer.Generate(c.Request.Context(), typ, stored.Path, extractedDir, genre, thumbBase)
}

// saveTrailer handles the optional trailer upload for movies. Returns
// ok=false after writing the error response itself.
func saveTrailer(c *gin.Context, d *internal.Deps, typ, requestID string) (string, bool) {
	if typ != model.TypeMovie {
		return "", true
	}

	fh, err := c.FormFile("trailer")
	if err != nil || fh == nil {
		return "", true
	}

	if code, err := validators.UploadValidator(model.TypeMovie, fh); err != nil {
		c.JSON(code, gin.H{
			"error":     "Trailer rejected: " + err.Error(),
			"code":      validators.DiagCode(err),
			"requestID": requestID,
		})
		return "", false
	}

	stored, err := d.Store.SaveUpload(fh, typ, "_trailer")
	if err != nil {
		c.JSON(storeFailureStatus(err), gin.H{
			"error":     "Trailer rejected: " + err.Error(),
			"code":      validators.DiagCode(err),
			"requestID": requestID,
		})

		zap.L().Error("Failed to store trailer", zap.String("requestID", requestID), zap.Error(err))
		return "", false
	}

	return stored.Path, true
}

// storeFailureStatus picks the response status for a storage failure.
// A cut-off transfer is the client's doing, everything else is ours.
func storeFailureStatus(err error) int {
	if errors.Is(err, service.ErrPartialUpload) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}
