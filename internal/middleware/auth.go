package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/utils"
)

const (
	ContextUserID   = "user_id"
	ContextTenantID = "tenant_id"
)

// AuthRequired validates the bearer access token and puts the user and
// tenant ids on the request context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "authorization header required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(parts[1])
		if err != nil || claims.TokenType != utils.TokenAccess {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextTenantID, claims.TenantID)

		c.Next()
	}
}

// GetUserID gets the current user id from context.
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get(ContextUserID); exists {
		return id.(string)
	}
	return ""
}

// GetTenantID gets the active tenant id from context.
func GetTenantID(c *gin.Context) string {
	if id, exists := c.Get(ContextTenantID); exists {
		return id.(string)
	}
	return ""
}
