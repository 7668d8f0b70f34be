package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// MessageHandler handles the sender and receiver message endpoints.
type MessageHandler struct {
	gate     ports.SendGate
	messages ports.MessageService
	now      func() time.Time
}

func NewMessageHandler(gate ports.SendGate, messages ports.MessageService, now func() time.Time) *MessageHandler {
	if now == nil {
		now = time.Now
	}
	return &MessageHandler{gate: gate, messages: messages, now: now}
}

// Send submits a sealed message under the sender's current-window token.
//
// @Summary      Send a message
// @Description  The ciphertext is sealed client-side to the recipient's public key; the server never sees plaintext.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string              false  "Replays within one window return the original message id"
// @Param        body             body      sendMessageRequest  true   "Sealed message"
// @Success      201              {object}  sendMessageResponse
// @Success      200              {object}  sendMessageResponse  "Idempotent replay"
// @Failure      400              {object}  map[string]string
// @Failure      403              {object}  BannedResponse
// @Failure      409              {object}  windowMismatchResponse
// @Failure      503              {object}  map[string]string
// @Router       /messages [post]
func (h *MessageHandler) Send(c echo.Context) error {
	senderID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	now := h.now()
	res, err := h.gate.TrySend(c.Request().Context(), ports.SendInput{
		SenderID:       senderID,
		RecipientID:    req.RecipientID,
		Ciphertext:     req.Ciphertext,
		TokenHint:      req.TokenHint,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
		Now:            now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrWindowMismatch) {
			return c.JSON(http.StatusConflict, windowMismatchResponse{
				Error:    err.Error(),
				WindowID: domain.WindowAt(now),
			})
		}
		return err
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, sendMessageResponse{
		MessageID: res.MessageID,
		Token:     res.Token,
		WindowID:  res.WindowID,
		Warned:    res.Warned,
		Replayed:  res.Replayed,
	})
}

// Inbox lists the receiver's messages, newest first.
//
// @Summary      Receiver inbox
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page (default 1)"
// @Param        limit  query     int  false  "Page size (default 20, max 100)"
// @Success      200    {object}  messagePageResponse
// @Failure      403    {object}  map[string]string
// @Router       /messages/inbox [get]
func (h *MessageHandler) Inbox(c echo.Context) error {
	recipientID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var q pageQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	page, err := h.messages.Inbox(c.Request().Context(), recipientID, q.Page, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMessagePage(page))
}

// MarkRead marks one of the receiver's messages as read.
//
// @Summary      Mark message read
// @Tags         messages
// @Security     BearerAuth
// @Param        id  path  string  true  "Message id"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /messages/{id}/read [post]
func (h *MessageHandler) MarkRead(c echo.Context) error {
	recipientID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.messages.MarkRead(c.Request().Context(), c.Param("id"), recipientID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Flag reports a message to the moderators.
//
// @Summary      Flag message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string       true   "Message id"
// @Param        body  body      flagRequest  false  "Reason"
// @Success      200   {object}  domain.Message
// @Failure      404   {object}  map[string]string
// @Router       /messages/{id}/flag [post]
func (h *MessageHandler) Flag(c echo.Context) error {
	recipientID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req flagRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.messages.Flag(c.Request().Context(), c.Param("id"), recipientID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

func toMessagePage(p *ports.MessagePage) messagePageResponse {
	items := p.Items
	if items == nil {
		items = []*domain.Message{}
	}
	return messagePageResponse{
		Items: items,
		pageMeta: pageMeta{
			Total:      p.Total,
			Page:       p.Page,
			Limit:      p.Limit,
			TotalPages: p.TotalPages,
		},
	}
}
