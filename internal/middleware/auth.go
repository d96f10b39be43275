package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminAuth is the capability check for administrative routes: a bearer token
// compared against the configured admin API token. When no token is
// configured, every administrative request is denied.
func AdminAuth(adminToken string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			log.Warn("Middleware: Administrative endpoints are disabled (no admin token configured)")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrative access disabled"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Middleware: Authorization header is missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warnf("Middleware: Invalid Authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(adminToken)) != 1 {
			log.Warn("Middleware: Invalid admin token")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("isAdmin", true)
		c.Next()
	}
}
