// Package transcode contains the handler bodies behind /api/contents/:id/process
package transcode

import (
	"errors"
	"net/http"

	"buscatalog/media-api/internal"
	"buscatalog/media-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Process runs a full quality pass synchronously and blocks the
// request for its duration. The background worker pool is the normal
// path; this endpoint exists for re-processing existing videos from
// the admin screens.
func Process(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	contentID := c.Param("id")

	err := d.Transcoder.Process(c.Request.Context(), contentID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Content not found",
				"requestID": requestID,
			})

		case errors.Is(err, service.ErrAlreadyProcessing):
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Content is already being processed",
				"requestID": requestID,
			})

		case errors.Is(err, service.ErrProbeFailed):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":     "Source file could not be probed",
				"code":      "PROBE_FAILED",
				"requestID": requestID,
			})

		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Direct processing failed",
				zap.String("requestID", requestID),
				zap.String("content_id", contentID),
				zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
