package rbac

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"settlement-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, userID, partyID, role string, allowed ...Kind) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, partyID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, ResolveRole(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serve(t, "u", "", "admin", KindCenter); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_ProducerDeniedOnCenterRoute(t *testing.T) {
	if code := serve(t, "u", "prod-1", "producer", KindCenter); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_CenterAllowed(t *testing.T) {
	if code := serve(t, "u", "cust-1", "center", KindCenter, KindProducer); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestResolveRole_PartyRequired(t *testing.T) {
	if code := serve(t, "u", "", "center", KindCenter); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestResolveRole_UnknownRole(t *testing.T) {
	if code := serve(t, "u", "x", "owner", KindCenter); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestResolve(t *testing.T) {
	r, err := Resolve("center", "cust-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.CustomerID() != "cust-1" || r.ProducerID() != "" || r.IsAdmin() {
		t.Fatalf("unexpected role: %+v", r)
	}
	a, err := Resolve("admin", "ignored")
	if err != nil || !a.IsAdmin() || a.PartyID != "" {
		t.Fatalf("unexpected admin role: %+v %v", a, err)
	}
	if _, err := Resolve("", ""); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}
