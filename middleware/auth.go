package middleware

import (
	"net/http"
	"strings"

	"marketplace-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextUserRole  = "user_role"
	ContextVendorID  = "vendor_id"
)

// AuthMiddleware verifies the identity provider's bearer token and stores the
// caller's identity on the context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, _ := claims.UserID()
		c.Set(ContextUserID, userID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserRole, claims.Role())
		if vendorID := claims.VendorID(); vendorID != nil {
			c.Set(ContextVendorID, *vendorID)
		}
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextUserRole)
		if !exists || role != utils.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// VendorMiddleware requires the vendor role and a vendor_id in the token.
func VendorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextUserRole)
		if !exists || role != utils.RoleVendor {
			c.JSON(http.StatusForbidden, gin.H{"error": "Vendor access required"})
			c.Abort()
			return
		}

		if _, exists := c.Get(ContextVendorID); !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "No vendor associated with this account"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUserID returns the authenticated subject.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// CurrentVendorID returns the vendor the caller manages.
func CurrentVendorID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextVendorID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
