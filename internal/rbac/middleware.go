package rbac

import (
	"net/http"

	"settlement-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// ResolveRole resolves the CustomerRole once from the verified identity.
// It must run after auth.RequireAccessToken.
func ResolveRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		role, err := auth.Role(ctx)
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		r, err := Resolve(role, auth.PartyID(ctx))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Request = c.Request.WithContext(WithRole(ctx, r))
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided kinds.
// Admin passes every check.
func RequireAnyRole(allowed ...Kind) gin.HandlerFunc {
	allowedSet := make(map[Kind]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}

	return func(c *gin.Context) {
		r, ok := FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if r.IsAdmin() {
			c.Next()
			return
		}
		if _, ok := allowedSet[r.Kind]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
