package middleware

import (
	"github.com/gin-gonic/gin"
)

// AdminGuard authorizes requests against the external session
// subsystem. Authentication lives outside this service; deployments
// plug their own check in here.
type AdminGuard func(c *gin.Context) (principal string, ok bool)

// AdminRequired wraps an AdminGuard into gin middleware. A nil guard
// lets everything through with an anonymous principal, which is what
// the on-bus appliance runs with behind its management VPN.
func AdminRequired(guard AdminGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guard == nil {
			c.Set("adminID", "anonymous")
			c.Next()
			return
		}

		principal, ok := guard(c)
		if !ok {
			c.AbortWithStatusJSON(401, gin.H{
				"error":     "Unauthorized",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Set("adminID", principal)
		c.Next()
	}
}
