package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const ServiceKeyHeader = "X-Service-Key"

// ServiceKeyMiddleware guards internal endpoints called by other backend
// services. The presented key is checked against a bcrypt hash; an empty hash
// rejects every request.
func ServiceKeyMiddleware(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(ServiceKeyHeader)
		if keyHash == "" || key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Service key required"})
			c.Abort()
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid service key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
