package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/aura-platform/integrations/pkg/response"
)

// RequireRole admits operators whose token carries one of roles and a non-empty subject.
// Must run after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if role == "" || c.GetString(ContextOperatorID) == "" {
			response.Unauthorized(c, "missing operator context")
			c.Abort()
			return
		}
		if !slices.Contains(roles, role) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
