package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// UserHandler serves account status, the receiver directory and the admin
// approval queue.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type statusResponse struct {
	Username string               `json:"username"`
	Role     string               `json:"role"`
	Status   domain.ApprovalState `json:"status"`
}

// Status reports the approval state of an account so a pending user can
// poll before logging in.
//
// @Summary      Account approval status
// @Tags         users
// @Produce      json
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  statusResponse
// @Failure      404       {object}  map[string]string
// @Router       /users/status/{username} [get]
func (h *UserHandler) Status(c echo.Context) error {
	user, err := h.service.Status(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{
		Username: user.Username,
		Role:     user.Role,
		Status:   user.Approval,
	})
}

// ListReceivers returns the approved receivers and their public keys.
//
// @Summary      List receivers
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   receiverResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /users/receivers [get]
func (h *UserHandler) ListReceivers(c echo.Context) error {
	users, err := h.service.ListReceivers(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]receiverResponse, 0, len(users))
	for _, u := range users {
		out = append(out, receiverResponse{ID: u.ID, Username: u.Username, PublicKey: u.PublicKey})
	}
	return c.JSON(http.StatusOK, out)
}

// ListPending returns accounts awaiting approval, oldest first.
//
// @Summary      List pending accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.User
// @Failure      403  {object}  map[string]string
// @Router       /admin/users/pending [get]
func (h *UserHandler) ListPending(c echo.Context) error {
	users, err := h.service.ListPending(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Approve moves an account to approved.
//
// @Summary      Approve account
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  domain.User
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/approve [post]
func (h *UserHandler) Approve(c echo.Context) error {
	adminID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	user, err := h.service.Approve(c.Request().Context(), c.Param("id"), adminID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Reject moves an account to rejected.
//
// @Summary      Reject account
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  domain.User
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/reject [post]
func (h *UserHandler) Reject(c echo.Context) error {
	adminID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	user, err := h.service.Reject(c.Request().Context(), c.Param("id"), adminID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
