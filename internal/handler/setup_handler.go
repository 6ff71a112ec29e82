package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/dto"
	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

type setupService interface {
	RequiresSetup(ctx context.Context) (bool, error)
	CreateInitialUser(ctx context.Context, req models.CreateUserRequest) (*models.LoginResult, error)
}

// SetupHandler exposes the one-time bootstrap endpoints.
type SetupHandler struct {
	service setupService
	ids     dto.IDCodec
}

// NewSetupHandler creates a setup handler.
func NewSetupHandler(svc setupService, ids dto.IDCodec) *SetupHandler {
	return &SetupHandler{service: svc, ids: ids}
}

// Status godoc
// @Summary Setup status
// @Description Reports whether the initial administrator still has to be created
// @Tags Setup
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /setup [get]
func (h *SetupHandler) Status(c *gin.Context) {
	required, err := h.service.RequiresSetup(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, models.SetupStatus{RequiresSetup: required}, nil)
}

// Create godoc
// @Summary Create initial administrator
// @Description Creates the first administrator and returns its session token
// @Tags Setup
// @Accept json
// @Produce json
// @Param payload body models.CreateUserRequest true "Administrator"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /setup [post]
func (h *SetupHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if !bindJSON(c, &req, "invalid setup payload") {
		return
	}

	result, err := h.service.CreateInitialUser(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewSessionResponse(h.ids, result))
}
