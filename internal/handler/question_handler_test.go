package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

type questionServiceMock struct {
	body    []byte
	deleted uint64
}

func sampleQuestion(id uint64) models.Question {
	return models.Question{
		ID:        id,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Content: models.MultipleChoiceQuestion{
			QuestionPrompt: models.QuestionPrompt{HumanPrompt: "Which?", SummaryCode: "which"},
			Choices:        []string{"a", "b"},
		},
	}
}

func (m *questionServiceMock) Create(ctx context.Context, actor *models.User, corpusName string, body []byte) (*models.Question, error) {
	m.body = body
	q := sampleQuestion(11)
	return &q, nil
}

func (m *questionServiceMock) List(ctx context.Context, corpusName string) ([]models.Question, error) {
	return []models.Question{sampleQuestion(1), sampleQuestion(2)}, nil
}

func (m *questionServiceMock) Get(ctx context.Context, corpusName string, id uint64) (*models.Question, error) {
	if id != 1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
	}
	q := sampleQuestion(1)
	return &q, nil
}

func (m *questionServiceMock) Delete(ctx context.Context, actor *models.User, corpusName string, id uint64) error {
	m.deleted = id
	return nil
}

func TestQuestionHandlerCreatePassesRawBody(t *testing.T) {
	svc := &questionServiceMock{}
	h := NewQuestionHandler(svc, testIDs)

	raw := `{"kind":"MultipleChoiceQuestion","humanPrompt":"Which?","summaryCode":"which","choices":["a","b"]}`
	c, w := newContext(t, http.MethodPost, "/corpora/speech/questions", raw)
	c.Params = gin.Params{{Key: "corpus", Value: "speech"}}
	asUser(c, admin())
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, raw, string(svc.body))
	data := string(decode(t, w).Data)
	assert.Contains(t, data, `"kind":"MultipleChoiceQuestion"`)
	assert.Contains(t, data, `"corpus":"speech"`)
	assert.Contains(t, data, testIDs.Encode(11))
}

func TestQuestionHandlerCreateEmptyBody(t *testing.T) {
	h := NewQuestionHandler(&questionServiceMock{}, testIDs)

	c, w := newContext(t, http.MethodPost, "/corpora/speech/questions", nil)
	c.Params = gin.Params{{Key: "corpus", Value: "speech"}}
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuestionHandlerListAndGet(t *testing.T) {
	h := NewQuestionHandler(&questionServiceMock{}, testIDs)

	c, w := newContext(t, http.MethodGet, "/corpora/speech/questions", nil)
	c.Params = gin.Params{{Key: "corpus", Value: "speech"}}
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), testIDs.Encode(2))

	c, w = newContext(t, http.MethodGet, "/corpora/speech/questions/x", nil)
	c.Params = gin.Params{{Key: "corpus", Value: "speech"}, {Key: "id", Value: testIDs.Encode(4)}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuestionHandlerDelete(t *testing.T) {
	svc := &questionServiceMock{}
	h := NewQuestionHandler(svc, testIDs)

	c, w := newContext(t, http.MethodDelete, "/corpora/speech/questions/x", nil)
	c.Params = gin.Params{{Key: "corpus", Value: "speech"}, {Key: "id", Value: testIDs.Encode(1)}}
	asUser(c, admin())
	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, uint64(1), svc.deleted)
}
