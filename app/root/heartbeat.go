// Package root contains the handlers not tied to any resource
package root

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Heartbeat lets the depot tooling check whether the appliance is up.
func Heartbeat(c *gin.Context) {
	c.Status(http.StatusOK)
}
