package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tffhost/backend/internal/infrastructure/logger"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
)

// Gin context keys of the caller identity
const (
	UsernameKey = "username"
	RolesKey    = "roles"
)

// Roles known to the API
const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

// IdentityConfig names the headers the authenticating proxy sets
type IdentityConfig struct {
	UsernameHeader string
	RolesHeader    string
}

// Identity reads the caller from the proxy headers. It never rejects a request;
// RequireUser and RequireRole do.
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	if cfg.UsernameHeader == "" {
		cfg.UsernameHeader = "X-Username"
	}
	if cfg.RolesHeader == "" {
		cfg.RolesHeader = "X-Roles"
	}
	return func(c *gin.Context) {
		username := strings.TrimSpace(c.GetHeader(cfg.UsernameHeader))
		if username != "" {
			c.Set(UsernameKey, username)
			c.Request = c.Request.WithContext(logger.WithUsername(c.Request.Context(), username))
		}
		if raw := c.GetHeader(cfg.RolesHeader); raw != "" {
			var roles []string
			for _, r := range strings.Split(raw, ",") {
				if r = strings.TrimSpace(r); r != "" {
					roles = append(roles, r)
				}
			}
			c.Set(RolesKey, roles)
		}
		c.Next()
	}
}

// GetUsername returns the authenticated username, empty for anonymous requests
func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}

// HasRole reports whether the caller holds role
func HasRole(c *gin.Context, role string) bool {
	return slices.Contains(c.GetStringSlice(RolesKey), role)
}

// RequireUser rejects anonymous requests
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUsername(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Authentication required", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers holding none of the roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUsername(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Authentication required", GetRequestID(c)))
			return
		}
		for _, role := range roles {
			if HasRole(c, role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeForbidden, "Insufficient permissions", GetRequestID(c)))
	}
}
