package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// RBAC admits requests whose JWT role is one of allowedRoles. Must run after
// Auth. Refusals go through the central error handler as ErrForbidden.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if !allowed[role] {
				return fmt.Errorf("%w: role %q", domain.ErrForbidden, role)
			}
			return next(c)
		}
	}
}
