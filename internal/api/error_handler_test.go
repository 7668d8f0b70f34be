package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

func handle(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/messages", nil), rec)
	NewHTTPErrorHandler(zerolog.Nop())(err, c)
	return rec
}

func TestErrorHandler_StorageUnavailable(t *testing.T) {
	err := fmt.Errorf("save message: %w: %w", domain.ErrStorageUnavailable, errors.New("connection reset"))
	rec := handle(t, err)
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected 503 with Retry-After, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	body := decode(t, rec)
	if body["error"] == "" || body["error"] == err.Error() {
		t.Fatalf("storage details must not leak: %v", body["error"])
	}
}

func TestErrorHandler_TempBanRoundsUp(t *testing.T) {
	rec := handle(t, &domain.BannedError{Status: domain.Status{
		Kind:      domain.StatusTempBanned,
		BanType:   domain.BanTemp1Hour,
		Remaining: 90*time.Second + time.Millisecond,
	}})
	if rec.Code != http.StatusForbidden || rec.Header().Get("Retry-After") != "91" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	body := decode(t, rec)
	if body["kind"] != "temp_banned" || body["ban_type"] != "temp_1hour" || body["remaining_seconds"].(float64) != 91 {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestErrorHandler_DomainMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrNotApproved, http.StatusForbidden},
		{fmt.Errorf("window 7: %w", domain.ErrWindowMismatch), http.StatusConflict},
		{domain.ErrNotFrozen, http.StatusConflict},
		{domain.ErrSendInProgress, http.StatusConflict},
		{domain.ErrInvalidRecipient, http.StatusBadRequest},
		{domain.ErrInvalidToken, http.StatusBadRequest},
		{domain.ErrMessageNotFound, http.StatusNotFound},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrUserExists, http.StatusConflict},
		{echo.NewHTTPError(http.StatusTeapot, "brew"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if rec := handle(t, tc.err); rec.Code != tc.code {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
	}
}
