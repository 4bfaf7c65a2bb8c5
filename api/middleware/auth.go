package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapeworker/models"
)

// Auth returns bearer-token authentication middleware. Accepts both
// "Authorization: Bearer <token>" and a bare "Authorization: <token>".
// If token is empty, the middleware is a no-op (auth disabled, spec.md §6).
func Auth(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		got := extractBearer(c)
		if got == "" || got != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "missing or invalid bearer token",
			})
			return
		}
		c.Next()
	}
}

// extractBearer accepts both "Bearer <token>" and a bare token value.
func extractBearer(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return auth
}
