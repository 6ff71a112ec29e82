package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/dto"
	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

type userService interface {
	CreateUser(ctx context.Context, actor *models.User, req models.CreateUserRequest) (*models.User, error)
	GetByID(ctx context.Context, id uint64) (*models.User, error)
	ListActive(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Deactivate(ctx context.Context, actor *models.User, id uint64) error
	AssignRole(ctx context.Context, actor *models.User, id uint64, req models.AssignRoleRequest) (*models.User, error)
}

// UserHandler handles the user directory endpoints.
type UserHandler struct {
	service userService
	ids     dto.IDCodec
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService, ids dto.IDCodec) *UserHandler {
	return &UserHandler{service: svc, ids: ids}
}

// List godoc
// @Summary List users
// @Description List active users ordered by username
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Param role query string false "Role filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		filter.PageSize = size
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}

	users, pagination, err := h.service.ListActive(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewUserResponses(h.ids, users), pagination)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, h.ids, "id")
	if !ok {
		return
	}
	user, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewUserResponse(h.ids, user), nil)
}

// Create godoc
// @Summary Create user
// @Description Administrators create users; the new user must change their password on first use
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.CreateUserRequest true "User"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if !bindJSON(c, &req, "invalid user payload") {
		return
	}
	user, err := h.service.CreateUser(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewUserResponse(h.ids, user))
}

// AssignRole godoc
// @Summary Assign role
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.AssignRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/role [put]
func (h *UserHandler) AssignRole(c *gin.Context) {
	id, ok := pathID(c, h.ids, "id")
	if !ok {
		return
	}
	var req models.AssignRoleRequest
	if !bindJSON(c, &req, "invalid role payload") {
		return
	}
	user, err := h.service.AssignRole(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewUserResponse(h.ids, user), nil)
}

// Deactivate godoc
// @Summary Deactivate user
// @Description Soft deletes the user and revokes their sessions
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Deactivate(c *gin.Context) {
	id, ok := pathID(c, h.ids, "id")
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), currentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
