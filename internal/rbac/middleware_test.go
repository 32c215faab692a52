package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"callcenter-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, identityRole, companyID string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", companyID, identityRole)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireCompany(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serve(t, RoleSuperAdmin, "co", RoleOwner); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesUnlistedRole(t *testing.T) {
	if code := serve(t, RoleViewer, "co", RoleOwner, RoleAdmin); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_AllowsListedRole(t *testing.T) {
	if code := serve(t, RoleAdmin, "co", RoleOwner, RoleAdmin); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireCompany_CompanyRequired(t *testing.T) {
	if code := serve(t, RoleOwner, "", RoleOwner); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestIsInvitable(t *testing.T) {
	for _, r := range []string{RoleOwner, RoleAdmin, RoleMember, RoleViewer} {
		if !IsInvitable(r) {
			t.Fatalf("expected %s invitable", r)
		}
	}
	if IsInvitable(RoleSuperAdmin) {
		t.Fatalf("super_admin must not be invitable")
	}
	if IsInvitable("manager") {
		t.Fatalf("unknown role must not be invitable")
	}
}
