package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/dto"
	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

type questionService interface {
	Create(ctx context.Context, actor *models.User, corpusName string, body []byte) (*models.Question, error)
	List(ctx context.Context, corpusName string) ([]models.Question, error)
	Get(ctx context.Context, corpusName string, id uint64) (*models.Question, error)
	Delete(ctx context.Context, actor *models.User, corpusName string, id uint64) error
}

// QuestionHandler handles the per corpus question endpoints.
type QuestionHandler struct {
	service questionService
	ids     dto.IDCodec
}

// NewQuestionHandler creates a question handler.
func NewQuestionHandler(svc questionService, ids dto.IDCodec) *QuestionHandler {
	return &QuestionHandler{service: svc, ids: ids}
}

// List godoc
// @Summary List questions
// @Tags Questions
// @Security BearerAuth
// @Produce json
// @Param corpus path string true "Corpus name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /corpora/{corpus}/questions [get]
func (h *QuestionHandler) List(c *gin.Context) {
	corpus := c.Param("corpus")
	questions, err := h.service.List(c.Request.Context(), corpus)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.QuestionResponse, 0, len(questions))
	for i := range questions {
		out = append(out, dto.NewQuestionResponse(h.ids, corpus, &questions[i]))
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// Get godoc
// @Summary Get question
// @Tags Questions
// @Security BearerAuth
// @Produce json
// @Param corpus path string true "Corpus name"
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /corpora/{corpus}/questions/{id} [get]
func (h *QuestionHandler) Get(c *gin.Context) {
	id, ok := pathID(c, h.ids, "id")
	if !ok {
		return
	}
	corpus := c.Param("corpus")
	question, err := h.service.Get(c.Request.Context(), corpus, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewQuestionResponse(h.ids, corpus, question), nil)
}

// Create godoc
// @Summary Create question
// @Description The body is a tagged question object; kind selects the variant
// @Tags Questions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param corpus path string true "Corpus name"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /corpora/{corpus}/questions [post]
func (h *QuestionHandler) Create(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid question payload"))
		return
	}
	corpus := c.Param("corpus")
	question, err := h.service.Create(c.Request.Context(), currentUser(c), corpus, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewQuestionResponse(h.ids, corpus, question))
}

// Delete godoc
// @Summary Delete question
// @Tags Questions
// @Security BearerAuth
// @Param corpus path string true "Corpus name"
// @Param id path string true "Question ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /corpora/{corpus}/questions/{id} [delete]
func (h *QuestionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, h.ids, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), currentUser(c), c.Param("corpus"), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
