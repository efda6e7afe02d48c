package content

import (
	"net/http"

	"buscatalog/media-api/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContentJobs returns the transcode job records for a content id,
// newest first.
func ContentJobs(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	jobs, err := d.Jobs.ForContent(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list jobs", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, jobs)
}
