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

type editRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Genre       *string `json:"genre"`
	ReleaseYear *int    `json:"release_year"`
	Rating      *string `json:"rating"`
	State       *string `json:"state"`
}

// ContentEdit updates the descriptive fields of a record and toggles
// its visibility. State changes go through the state machine, so a
// record can never be pushed back into processing.
func ContentEdit(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed request body",
			"requestID": requestID,
		})
		return
	}

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

		zap.L().Error("Failed to load content for edit", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	updates := map[string]any{}

	if req.Title != nil {
		if *req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Title can't be empty",
				"requestID": requestID,
			})
			return
		}
		updates["title"] = *req.Title
	}

	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Genre != nil {
		updates["genre"] = *req.Genre
	}
	if req.ReleaseYear != nil {
		updates["release_year"] = *req.ReleaseYear
	}
	if req.Rating != nil {
		updates["rating"] = *req.Rating
	}

	if req.State != nil && *req.State != content.State {
		if !model.ValidTransition(content.State, *req.State) {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Invalid state transition",
				"requestID": requestID,
			})
			return
		}
		updates["state"] = *req.State
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, content)
		return
	}

	err = d.DB.
		Model(model.Content{}).
		Where("id = ?", content.ID).
		Updates(updates).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update content", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	d.DB.First(&content, "id = ?", content.ID)
	c.JSON(http.StatusOK, content)
}
