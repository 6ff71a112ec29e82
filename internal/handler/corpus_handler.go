package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/dto"
	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

type corpusService interface {
	Create(ctx context.Context, actor *models.User, req models.CreateCorpusRequest) (*models.Corpus, error)
	ListNames(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) (*models.Corpus, error)
}

// CorpusHandler handles corpus endpoints.
type CorpusHandler struct {
	service corpusService
}

// NewCorpusHandler creates a corpus handler.
func NewCorpusHandler(svc corpusService) *CorpusHandler {
	return &CorpusHandler{service: svc}
}

// List godoc
// @Summary List corpora
// @Description Returns corpus names in name order
// @Tags Corpora
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /corpora [get]
func (h *CorpusHandler) List(c *gin.Context) {
	names, err := h.service.ListNames(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, names, nil)
}

// Get godoc
// @Summary Get corpus
// @Tags Corpora
// @Security BearerAuth
// @Produce json
// @Param corpus path string true "Corpus name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /corpora/{corpus} [get]
func (h *CorpusHandler) Get(c *gin.Context) {
	corpus, err := h.service.Get(c.Request.Context(), c.Param("corpus"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewCorpusResponse(corpus), nil)
}

// Create godoc
// @Summary Create corpus
// @Tags Corpora
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.CreateCorpusRequest true "Corpus"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /corpora [post]
func (h *CorpusHandler) Create(c *gin.Context) {
	var req models.CreateCorpusRequest
	if !bindJSON(c, &req, "invalid corpus payload") {
		return
	}
	corpus, err := h.service.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewCorpusResponse(corpus))
}
