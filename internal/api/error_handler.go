package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/api/handler"
	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Renders sender blocks with their kind and remaining time.
//   - Logs unexpected errors internally without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var banned *domain.BannedError
		if errors.As(err, &banned) {
			body := handler.NewBannedResponse(banned)
			if !banned.Permanent() {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(body.RemainingSeconds, 10))
			}
			_ = c.JSON(http.StatusForbidden, body)
			return
		}

		code, msg := resolveError(err, log, c)
		if code == http.StatusServiceUnavailable {
			c.Response().Header().Set("Retry-After", "1")
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrStorageUnavailable):
		log.Warn().Err(err).Str("path", c.Path()).Msg("storage unavailable")
		return http.StatusServiceUnavailable, "storage temporarily unavailable, retry"
	case errors.Is(err, domain.ErrNotApproved):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrWindowMismatch):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrNotFrozen),
		errors.Is(err, domain.ErrSendInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrMessageNotFound):
		return http.StatusNotFound, "message not found"
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, "moderation record not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidPublicKey),
		errors.Is(err, domain.ErrInvalidRecipient),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrInvalidBanDuration),
		errors.Is(err, domain.ErrInvalidActionType):
		return http.StatusBadRequest, err.Error()
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
