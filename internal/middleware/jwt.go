package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-platform/integrations/internal/auth"
	"github.com/aura-platform/integrations/pkg/response"
)

const (
	// ContextOperatorID is the key for the token subject in gin context.
	ContextOperatorID = "operator_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates JWT and sets operator claims in context.
// Browsers cannot set headers on a websocket upgrade, so a token query parameter is accepted too.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearer(c)
		if token == "" {
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextOperatorID, claims.Subject)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

func bearer(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("token"); q != "" {
			return q, ""
		}
		return "", "missing authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "invalid authorization header"
	}
	return parts[1], ""
}
