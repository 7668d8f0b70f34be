package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

func runRBAC(t *testing.T, role any, allowed ...string) (bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if role != nil {
		c.Set(CtxRole, role)
	}

	called := false
	err := RBAC(allowed...)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	return called, err
}

func TestRBAC_Allows(t *testing.T) {
	called, err := runRBAC(t, domain.RoleModerator, domain.RoleModerator, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
}

func TestRBAC_Forbids(t *testing.T) {
	cases := map[string]any{
		"other role":   domain.RoleSender,
		"missing role": nil,
		"wrong type":   42,
	}
	for name, role := range cases {
		t.Run(name, func(t *testing.T) {
			called, err := runRBAC(t, role, domain.RoleModerator, domain.RoleAdmin)
			if !errors.Is(err, domain.ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
			if called {
				t.Fatalf("next handler must not run")
			}
		})
	}
}
