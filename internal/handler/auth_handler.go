package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/dto"
	"github.com/noah-isme/annotatron-api/internal/middleware"
	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error)
	Logout(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, actor *models.User, targetID uint64, req models.ChangePasswordRequest) error
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	ids     dto.IDCodec
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, ids dto.IDCodec) *AuthHandler {
	return &AuthHandler{service: svc, ids: ids}
}

// Login godoc
// @Summary Obtain a session token
// @Description Authenticate by username and password. Returns the user's live token when one exists.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/token [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSessionResponse(h.ids, result), nil)
}

// Logout godoc
// @Summary Revoke the current session token
// @Tags Authentication
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/token [delete]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.CurrentToken(c)
	if token == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewUserResponse(h.ids, user), nil)
}

// ChangePassword godoc
// @Summary Change a password
// @Description Users change their own password by supplying the old one. Administrators may reset any user's password, which flags the user to choose a new one. Every session of the target is revoked.
// @Tags Authentication
// @Security BearerAuth
// @Accept json
// @Param id path string true "User ID"
// @Param payload body models.ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	id, ok := pathID(c, h.ids, "id")
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req, "invalid password payload") {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), currentUser(c), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
