package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/internal/repository"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

type questionRepository interface {
	Create(ctx context.Context, record *models.QuestionRecord) error
	ListByCorpus(ctx context.Context, corpusID uint64) ([]models.QuestionRecord, error)
	FindByID(ctx context.Context, corpusID, id uint64) (*models.QuestionRecord, error)
	Delete(ctx context.Context, corpusID, id uint64) error
}

// QuestionService manages the questions attached to a corpus.
type QuestionService struct {
	repo      questionRepository
	corpora   *CorpusService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuestionService constructs a QuestionService.
func NewQuestionService(repo questionRepository, corpora *CorpusService, validate *validator.Validate, logger *zap.Logger) *QuestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &QuestionService{repo: repo, corpora: corpora, validator: validate, logger: logger}
}

// Create decodes a kind tagged question body and stores it under corpusName.
func (s *QuestionService) Create(ctx context.Context, actor *models.User, corpusName string, body []byte) (*models.Question, error) {
	if !actor.HasRole(models.RoleAdministrator, models.RoleStaff) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}

	content, err := models.ParseQuestionContent(body)
	if err != nil {
		if errors.Is(err, models.ErrUnknownQuestionKind) {
			return nil, appErrors.FieldError("kind", "must be MultipleChoiceQuestion or TimeSeriesSegmentationQuestion")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if err := s.validator.Struct(content); err != nil {
		return nil, appErrors.Validation(err, "invalid question payload")
	}

	corpus, err := s.corpora.Get(ctx, corpusName)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode question")
	}

	record := &models.QuestionRecord{
		CorpusID:    corpus.ID,
		Kind:        content.Kind(),
		SummaryCode: content.Summary(),
		Content:     raw,
	}
	if actor != nil {
		creator := actor.ID
		record.CreatorID = &creator
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "summary code already used in this corpus")
		}
		return nil, storageError(err, "failed to create question")
	}

	return &models.Question{
		ID:        record.ID,
		CorpusID:  record.CorpusID,
		CreatorID: record.CreatorID,
		CreatedAt: record.CreatedAt,
		Content:   content,
	}, nil
}

// List returns the questions of a corpus. Records that no longer decode are skipped.
func (s *QuestionService) List(ctx context.Context, corpusName string) ([]models.Question, error) {
	corpus, err := s.corpora.Get(ctx, corpusName)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListByCorpus(ctx, corpus.ID)
	if err != nil {
		return nil, storageError(err, "failed to list questions")
	}

	questions := make([]models.Question, 0, len(records))
	for _, record := range records {
		question, err := record.Decode()
		if err != nil {
			s.logger.Warn("skipping undecodable question", zap.Uint64("question_id", record.ID), zap.Error(err))
			continue
		}
		questions = append(questions, *question)
	}
	return questions, nil
}

// Get returns a single question of a corpus.
func (s *QuestionService) Get(ctx context.Context, corpusName string, id uint64) (*models.Question, error) {
	corpus, err := s.corpora.Get(ctx, corpusName)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.FindByID(ctx, corpus.ID, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, storageError(err, "failed to load question")
	}
	question, err := record.Decode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode question")
	}
	return question, nil
}

// Delete removes a question from a corpus.
func (s *QuestionService) Delete(ctx context.Context, actor *models.User, corpusName string, id uint64) error {
	if !actor.HasRole(models.RoleAdministrator, models.RoleStaff) {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	corpus, err := s.corpora.Get(ctx, corpusName)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, corpus.ID, id); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return storageError(err, "failed to delete question")
	}
	return nil
}
