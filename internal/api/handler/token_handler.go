package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// TokenHandler exposes the caller's own token for the current window.
type TokenHandler struct {
	issuer ports.TokenIssuer
	now    func() time.Time
}

func NewTokenHandler(issuer ports.TokenIssuer, now func() time.Time) *TokenHandler {
	if now == nil {
		now = time.Now
	}
	return &TokenHandler{issuer: issuer, now: now}
}

// Current returns the sender's token for the current window.
//
// @Summary      Current sender token
// @Tags         tokens
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  currentTokenResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /tokens/current [get]
func (h *TokenHandler) Current(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	now := h.now()
	window := h.issuer.CurrentWindow(now)
	return c.JSON(http.StatusOK, currentTokenResponse{
		Token:       h.issuer.CachedTokenForCurrentWindow(userID, now),
		WindowID:    window,
		WindowStart: window.Start(),
		WindowEnd:   window.End(),
		ExpiresIn:   int64(window.End().Sub(now).Seconds()),
	})
}
