package content

import (
	"errors"
	"net/http"

	"buscatalog/media-api/internal"
	"buscatalog/media-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContentDelete runs the cleanup manager for one content id.
func ContentDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	summary, err := d.Cleaner.Delete(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Content not found",
				"requestID": requestID,
			})

		case errors.Is(err, service.ErrContentPackaged):
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Content is part of a ready or installed package and can't be deleted",
				"requestID": requestID,
			})

		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to delete content", zap.String("requestID", requestID), zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}
