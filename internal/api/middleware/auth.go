package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Auth returns an API key check for operator endpoints. With no key
// configured the check is a no-op, which is the default deployment.
func Auth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
