package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// QuestionKind tags the question variant on the wire and in storage.
type QuestionKind string

const (
	QuestionKindMultipleChoice         QuestionKind = "MultipleChoiceQuestion"
	QuestionKindTimeSeriesSegmentation QuestionKind = "TimeSeriesSegmentationQuestion"
)

// ErrUnknownQuestionKind is returned when a payload carries an unsupported kind tag.
var ErrUnknownQuestionKind = errors.New("unknown question kind")

// QuestionContent is implemented by every question variant.
type QuestionContent interface {
	Kind() QuestionKind
	Summary() string
}

// QuestionPrompt holds the text shared by all variants.
type QuestionPrompt struct {
	SummaryCode                    string `json:"summaryCode" validate:"required,max=64"`
	HumanPrompt                    string `json:"humanPrompt" validate:"required"`
	AnnotationInstructions         string `json:"annotationInstructions"`
	DetailedAnnotationInstructions string `json:"detailedAnnotationInstructions"`
}

// Summary returns the summary code used to group answers.
func (p QuestionPrompt) Summary() string { return p.SummaryCode }

// MultipleChoiceQuestion asks the annotator to pick from a fixed list.
type MultipleChoiceQuestion struct {
	QuestionPrompt
	Choices       []string `json:"choices" validate:"required,min=1,dive,required"`
	AllowMultiple bool     `json:"allowMultiple"`
}

// Kind implements QuestionContent.
func (MultipleChoiceQuestion) Kind() QuestionKind { return QuestionKindMultipleChoice }

// TimeSeriesSegmentationQuestion asks the annotator to split a recording into labelled segments.
type TimeSeriesSegmentationQuestion struct {
	QuestionPrompt
	MinimumSegments int      `json:"minimumSegments" validate:"gte=0"`
	MaximumSegments int      `json:"maximumSegments" validate:"gtefield=MinimumSegments"`
	SegmentChoices  []string `json:"segmentChoices" validate:"dive,required"`
	FreeFormAllowed bool     `json:"freeFormAllowed"`
}

// Kind implements QuestionContent.
func (TimeSeriesSegmentationQuestion) Kind() QuestionKind { return QuestionKindTimeSeriesSegmentation }

// ParseQuestionContent decodes a variant using the kind tag embedded in data.
func ParseQuestionContent(data []byte) (QuestionContent, error) {
	var tag struct {
		Kind QuestionKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode question kind: %w", err)
	}
	return DecodeQuestionContent(tag.Kind, data)
}

// DecodeQuestionContent decodes data as the variant named by kind.
func DecodeQuestionContent(kind QuestionKind, data []byte) (QuestionContent, error) {
	switch kind {
	case QuestionKindMultipleChoice:
		var q MultipleChoiceQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return &q, nil
	case QuestionKindTimeSeriesSegmentation:
		var q TimeSeriesSegmentationQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return &q, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionKind, kind)
	}
}

// QuestionRecord is the stored form of a question.
type QuestionRecord struct {
	ID          uint64         `db:"id"`
	CorpusID    uint64         `db:"corpus_id"`
	CreatorID   *uint64        `db:"creator_id"`
	Kind        QuestionKind   `db:"kind"`
	SummaryCode string         `db:"summary_code"`
	Content     types.JSONText `db:"content"`
	CreatedAt   time.Time      `db:"created_at"`
}

// Question is a decoded question attached to a corpus.
type Question struct {
	ID        uint64
	CorpusID  uint64
	CreatorID *uint64
	CreatedAt time.Time
	Content   QuestionContent
}

// Decode turns a stored record into a Question.
func (r QuestionRecord) Decode() (*Question, error) {
	content, err := DecodeQuestionContent(r.Kind, r.Content)
	if err != nil {
		return nil, err
	}
	return &Question{
		ID:        r.ID,
		CorpusID:  r.CorpusID,
		CreatorID: r.CreatorID,
		CreatedAt: r.CreatedAt,
		Content:   content,
	}, nil
}

// MarshalQuestion renders content as a flat object with its kind tag and any extra fields.
func MarshalQuestion(content QuestionContent, extra map[string]interface{}) ([]byte, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range extra {
		fields[k] = v
	}
	fields["kind"] = content.Kind()
	return json.Marshal(fields)
}
