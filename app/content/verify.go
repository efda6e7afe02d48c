package content

import (
	"errors"
	"net/http"

	"buscatalog/media-api/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContentVerify re-hashes the stored file and reports whether it still
// matches the hash computed at upload time. Corruption is reported,
// never auto-remediated.
func ContentVerify(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	result, err := d.Cleaner.Verify(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Content not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to verify content",
			"code":      "INTEGRITY_CHECK_FAILED",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify content", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	if !result.Intact {
		zap.L().Warn("Content hash mismatch",
			zap.String("content_id", result.ContentID),
			zap.String("expected", result.Expected),
			zap.String("actual", result.Actual))
	}

	c.JSON(http.StatusOK, result)
}
