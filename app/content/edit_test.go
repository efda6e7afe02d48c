package content

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"buscatalog/media-api/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patchRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPatch, "/api/contents/c1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Nothing ever returns to processing, not even through the admin edit.
func TestEditRejectsReturnToProcessing(t *testing.T) {
	gin.SetMode(gin.TestMode)

	d := newTestDeps(t)

	require.NoError(t, d.DB.Create(&model.Content{
		ID: "c1", Title: "x", Type: model.TypeMovie,
		FilePath: "m.mp4", State: model.StateActive,
	}).Error)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = patchRequest(`{"state":"processing"}`)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set("requestID", "test")

	ContentEdit(c, d)

	assert.Equal(t, http.StatusConflict, w.Code)

	var after model.Content
	require.NoError(t, d.DB.First(&after, "id = ?", "c1").Error)
	assert.Equal(t, model.StateActive, after.State)
}

func TestEditTogglesVisibility(t *testing.T) {
	gin.SetMode(gin.TestMode)

	d := newTestDeps(t)

	require.NoError(t, d.DB.Create(&model.Content{
		ID: "c1", Title: "x", Type: model.TypeMovie,
		FilePath: "m.mp4", State: model.StateActive,
	}).Error)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = patchRequest(`{"state":"inactive","title":"Renamed"}`)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set("requestID", "test")

	ContentEdit(c, d)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var after model.Content
	require.NoError(t, d.DB.First(&after, "id = ?", "c1").Error)
	assert.Equal(t, model.StateInactive, after.State)
	assert.Equal(t, "Renamed", after.Title)
}
