package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/annotatron-api/internal/models"
)

// QuestionResponse renders a question as one flat object: the variant's own fields, its kind
// tag and the envelope fields below.
type QuestionResponse struct {
	ID      string
	Corpus  string
	Creator *string
	Created time.Time
	Content models.QuestionContent
}

// NewQuestionResponse renders question. corpus is the owning corpus name.
func NewQuestionResponse(ids IDCodec, corpus string, question *models.Question) QuestionResponse {
	return QuestionResponse{
		ID:      ids.Encode(question.ID),
		Corpus:  corpus,
		Creator: encodeOptional(ids, question.CreatorID),
		Created: question.CreatedAt,
		Content: question.Content,
	}
}

// MarshalJSON implements json.Marshaler.
func (q QuestionResponse) MarshalJSON() ([]byte, error) {
	extra := map[string]interface{}{
		"id":      q.ID,
		"corpus":  q.Corpus,
		"created": q.Created,
	}
	if q.Creator != nil {
		extra["creator"] = *q.Creator
	}
	return models.MarshalQuestion(q.Content, extra)
}

var _ json.Marshaler = QuestionResponse{}
