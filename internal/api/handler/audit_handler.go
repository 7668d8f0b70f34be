package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// AuditHandler reads the moderation audit log. Moderators get it newest
// first; the admin report is chronological.
type AuditHandler struct {
	service ports.AuditService
}

func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// ModeratorLog returns audit entries newest first.
//
// @Summary      Audit log (newest first)
// @Tags         moderation
// @Produce      json
// @Security     BearerAuth
// @Param        token         query     string  false  "Filter by token"
// @Param        action_type   query     string  false  "Filter by action type"
// @Param        moderator_id  query     string  false  "Filter by moderator"
// @Param        page          query     int     false  "Page (default 1)"
// @Param        limit         query     int     false  "Page size (default 20, max 100)"
// @Success      200           {object}  auditPageResponse
// @Failure      400           {object}  map[string]string
// @Router       /moderation/audit [get]
func (h *AuditHandler) ModeratorLog(c echo.Context) error {
	return h.list(c, false)
}

// AdminReport returns audit entries in chronological order.
//
// @Summary      Audit report (chronological)
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        token         query     string  false  "Filter by token"
// @Param        action_type   query     string  false  "Filter by action type"
// @Param        moderator_id  query     string  false  "Filter by moderator"
// @Param        page          query     int     false  "Page (default 1)"
// @Param        limit         query     int     false  "Page size (default 20, max 100)"
// @Success      200           {object}  auditPageResponse
// @Failure      400           {object}  map[string]string
// @Router       /admin/audit [get]
func (h *AuditHandler) AdminReport(c echo.Context) error {
	return h.list(c, true)
}

func (h *AuditHandler) list(c echo.Context, oldestFirst bool) error {
	var q auditQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	page, err := h.service.ListAuditLog(c.Request().Context(), ports.AuditFilter{
		Token:       domain.Token(q.Token),
		ActionType:  domain.ActionType(q.ActionType),
		ModeratorID: q.ModeratorID,
		OldestFirst: oldestFirst,
		Page:        q.Page,
		Limit:       q.Limit,
	})
	if err != nil {
		return err
	}

	items := page.Items
	if items == nil {
		items = []*domain.AuditLogEntry{}
	}
	return c.JSON(http.StatusOK, auditPageResponse{
		Items: items,
		pageMeta: pageMeta{
			Total:      page.Total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: page.TotalPages,
		},
	})
}
