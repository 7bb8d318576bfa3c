package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// systemsCtxKey is the Gin context key holding the caller's allowed systems.
const systemsCtxKey = "allowed_systems"

// AllSystems in a key's system list grants access to every system.
const AllSystems = "*"

// APIKeyMiddleware maps X-API-Key to the information systems the caller may
// read. Unknown keys are rejected.
func APIKeyMiddleware(keys map[string][]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		systems, ok := keys[apiKey]
		if apiKey == "" || !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(systemsCtxKey, systems)
		c.Next()
	}
}

// RequireSystemAccess rejects requests for a :system the key does not cover.
// Must run after APIKeyMiddleware.
func RequireSystemAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Allowed(c, c.Param("system")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// Allowed reports whether the authenticated caller may read system.
func Allowed(c *gin.Context, system string) bool {
	if system == "" {
		return false
	}
	for _, s := range AllowedSystems(c) {
		if s == AllSystems || s == system {
			return true
		}
	}
	return false
}

// AllowedSystems returns the authenticated caller's systems from the request context.
func AllowedSystems(c *gin.Context) []string {
	v, _ := c.Get(systemsCtxKey)
	s, _ := v.([]string)
	return s
}
