package rbac

import (
	"net/http"

	"callcenter-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireCompany enforces the multi-tenant invariant: company_id must exist in context.
// This does not validate membership; that belongs to the authorization layer.
func RequireCompany() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, err := auth.CompanyID(c.Request.Context())
		if err != nil || cid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "company_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// Rules:
// - super_admin bypasses all checks
// - company isolation is enforced via RequireCompany (use it in the chain)
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		// super_admin bypasses all
		if IsSuperAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
