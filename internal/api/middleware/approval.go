package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// RequireApproved refuses accounts that the admin has not approved yet.
// It must run after Auth.
func RequireApproved(checker ports.ApprovalChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get(CtxUserID).(string)
			ok, err := checker.IsApproved(c.Request().Context(), userID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNotApproved
			}
			return next(c)
		}
	}
}
