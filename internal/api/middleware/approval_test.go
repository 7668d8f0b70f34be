package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

type stubApprovals map[string]bool

func (s stubApprovals) IsApproved(_ context.Context, userID string) (bool, error) {
	if userID == "broken" {
		return false, domain.ErrStorageUnavailable
	}
	return s[userID], nil
}

func runApproval(userID string) (bool, error) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set(CtxUserID, userID)

	called := false
	err := RequireApproved(stubApprovals{"ok": true})(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	return called, err
}

func TestRequireApproved(t *testing.T) {
	if called, err := runApproval("ok"); err != nil || !called {
		t.Fatalf("approved user must pass, err=%v", err)
	}
	if called, err := runApproval("pending"); !errors.Is(err, domain.ErrNotApproved) || called {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if called, err := runApproval("broken"); !errors.Is(err, domain.ErrStorageUnavailable) || called {
		t.Fatalf("expected storage error, got %v", err)
	}
}
