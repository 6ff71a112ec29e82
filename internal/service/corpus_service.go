package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/internal/repository"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

type corpusRepository interface {
	Create(ctx context.Context, corpus *models.Corpus) error
	ListNames(ctx context.Context) ([]string, error)
	FindByName(ctx context.Context, name string) (*models.Corpus, error)
}

// CorpusService manages corpora.
type CorpusService struct {
	repo      corpusRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCorpusService constructs a CorpusService.
func NewCorpusService(repo corpusRepository, validate *validator.Validate, logger *zap.Logger) *CorpusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CorpusService{repo: repo, validator: validate, logger: logger}
}

// Create adds a corpus. Only administrators and staff may create corpora.
func (s *CorpusService) Create(ctx context.Context, actor *models.User, req models.CreateCorpusRequest) (*models.Corpus, error) {
	if !actor.HasRole(models.RoleAdministrator, models.RoleStaff) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid corpus payload")
	}

	corpus := &models.Corpus{
		Name:                  req.Name,
		Description:           req.Description,
		CopyrightRestrictions: req.CopyrightRestrictions,
	}
	if err := s.repo.Create(ctx, corpus); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "corpus already exists")
		}
		return nil, storageError(err, "failed to create corpus")
	}
	return corpus, nil
}

// ListNames returns every corpus name in order.
func (s *CorpusService) ListNames(ctx context.Context) ([]string, error) {
	names, err := s.repo.ListNames(ctx)
	if err != nil {
		return nil, storageError(err, "failed to list corpora")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Get loads a corpus by name.
func (s *CorpusService) Get(ctx context.Context, name string) (*models.Corpus, error) {
	corpus, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "corpus not found")
		}
		return nil, storageError(err, "failed to load corpus")
	}
	return corpus, nil
}
