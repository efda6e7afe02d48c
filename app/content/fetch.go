package content

import (
	"errors"
	"net/http"

	"buscatalog/media-api/internal"
	"buscatalog/media-api/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContentList returns the catalog. The passenger-facing consumer
// filters on state=active, the admin screens read everything.
func ContentList(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	query := d.DB.Model(model.Content{}).Order("created_at desc")

	if state := c.Query("state"); state != "" {
		query = query.Where("state = ?", state)
	}

	if typ := c.Query("type"); typ != "" {
		query = query.Where("type = ?", typ)
	}

	var contents []model.Content
	if err := query.Find(&contents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list contents", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, contents)
}

// ContentFetch returns a single content record by id.
func ContentFetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var content model.Content
	err := d.DB.First(&content, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Content not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch content", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, content)
}
