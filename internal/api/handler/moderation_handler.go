package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// ModerationHandler serves the moderator console. Moderators only ever see
// tokens, never sender identities.
type ModerationHandler struct {
	ledger   ports.ModerationService
	messages ports.MessageService
	now      func() time.Time
}

func NewModerationHandler(ledger ports.ModerationService, messages ports.MessageService, now func() time.Time) *ModerationHandler {
	if now == nil {
		now = time.Now
	}
	return &ModerationHandler{ledger: ledger, messages: messages, now: now}
}

// ListFlagged returns the flag queue, newest first.
//
// @Summary      Flagged messages
// @Tags         moderation
// @Produce      json
// @Security     BearerAuth
// @Param        include_resolved  query     bool  false  "Include resolved flags"
// @Param        page              query     int   false  "Page (default 1)"
// @Param        limit             query     int   false  "Page size (default 20, max 100)"
// @Success      200               {object}  messagePageResponse
// @Failure      403               {object}  map[string]string
// @Router       /moderation/flagged [get]
func (h *ModerationHandler) ListFlagged(c echo.Context) error {
	var q pageQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}
	includeResolved, err := queryBool(c, "include_resolved")
	if err != nil {
		return err
	}

	page, err := h.messages.ListFlagged(c.Request().Context(), includeResolved, q.Page, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMessagePage(page))
}

// TokenStatus returns the evaluated status and the stored record of a token.
//
// @Summary      Token status
// @Tags         moderation
// @Produce      json
// @Security     BearerAuth
// @Param        token  path      string  true  "Sender token (64 hex chars)"
// @Success      200    {object}  tokenStatusResponse
// @Failure      400    {object}  map[string]string
// @Router       /moderation/tokens/{token} [get]
func (h *ModerationHandler) TokenStatus(c echo.Context) error {
	token := domain.Token(c.Param("token"))
	if !token.Valid() {
		return domain.ErrInvalidToken
	}
	ctx := c.Request().Context()

	st, err := h.ledger.StatusOf(ctx, token, h.now())
	if err != nil {
		return err
	}
	// tokens nobody has referenced yet have no record
	rec, err := h.ledger.Record(ctx, token)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return err
	}
	return c.JSON(http.StatusOK, toTokenStatus(token, st, rec))
}

// Warn issues a warning; warned tokens can still send.
//
// @Summary      Warn token
// @Tags         moderation
// @Produce      json
// @Security     BearerAuth
// @Param        token  path      string  true  "Sender token"
// @Success      200    {object}  tokenStatusResponse
// @Failure      400    {object}  map[string]string
// @Failure      503    {object}  map[string]string
// @Router       /moderation/tokens/{token}/warn [post]
func (h *ModerationHandler) Warn(c echo.Context) error {
	return h.transition(c, h.ledger.Warn)
}

// Freeze blocks a token until it is unfrozen.
//
// @Summary      Freeze token
// @Tags         moderation
// @Produce      json
// @Security     BearerAuth
// @Param        token  path      string  true  "Sender token"
// @Success      200    {object}  tokenStatusResponse
// @Failure      400    {object}  map[string]string
// @Failure      503    {object}  map[string]string
// @Router       /moderation/tokens/{token}/freeze [post]
func (h *ModerationHandler) Freeze(c echo.Context) error {
	return h.transition(c, h.ledger.Freeze)
}

// Unfreeze lifts a freeze.
//
// @Summary      Unfreeze token
// @Tags         moderation
// @Produce      json
// @Security     BearerAuth
// @Param        token  path      string  true  "Sender token"
// @Success      200    {object}  tokenStatusResponse
// @Failure      409    {object}  map[string]string
// @Failure      503    {object}  map[string]string
// @Router       /moderation/tokens/{token}/unfreeze [post]
func (h *ModerationHandler) Unfreeze(c echo.Context) error {
	return h.transition(c, h.ledger.Unfreeze)
}

// Ban applies a temporary ban of 5m or 1h.
//
// @Summary      Temp-ban token
// @Tags         moderation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        token  path      string      true  "Sender token"
// @Param        body   body      banRequest  true  "Ban duration"
// @Success      200    {object}  tokenStatusResponse
// @Failure      400    {object}  map[string]string
// @Failure      503    {object}  map[string]string
// @Router       /moderation/tokens/{token}/ban [post]
func (h *ModerationHandler) Ban(c echo.Context) error {
	var req banRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid duration")
	}
	return h.transition(c, func(ctx context.Context, token domain.Token, moderatorID string) (*domain.ModerationRecord, error) {
		return h.ledger.TempBan(ctx, token, moderatorID, d)
	})
}

// Resolve closes a flag. It never changes the sender token's state.
//
// @Summary      Resolve flag
// @Tags         moderation
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Message id"
// @Success      200  {object}  domain.Message
// @Failure      404  {object}  map[string]string
// @Router       /moderation/messages/{id}/resolve [post]
func (h *ModerationHandler) Resolve(c echo.Context) error {
	moderatorID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	msg, err := h.ledger.ResolveFlag(c.Request().Context(), c.Param("id"), moderatorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

type transitionFunc func(ctx context.Context, token domain.Token, moderatorID string) (*domain.ModerationRecord, error)

func (h *ModerationHandler) transition(c echo.Context, fn transitionFunc) error {
	moderatorID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	token := domain.Token(c.Param("token"))

	rec, err := fn(c.Request().Context(), token, moderatorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTokenStatus(token, rec.StatusAt(h.now()), rec))
}

func toTokenStatus(token domain.Token, st domain.Status, rec *domain.ModerationRecord) tokenStatusResponse {
	resp := tokenStatusResponse{
		Token:     token,
		Status:    st.Kind.String(),
		BanType:   st.BanType,
		ExpiresAt: st.ExpiresAt,
		Record:    rec,
	}
	if st.Kind == domain.StatusTempBanned {
		resp.RemainingSeconds = ceilSeconds(st.Remaining)
	}
	return resp
}
