package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/internal/repository"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uint64) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	CountActiveAdministrators(ctx context.Context) (int, error)
	Create(ctx context.Context, user *models.User) error
	CreateInitialAdministrator(ctx context.Context, user *models.User, token *models.Token) error
	UpdatePasswordAndRevokeTokens(ctx context.Context, id uint64, passwordHash string, resetNeeded bool, changedAt time.Time) error
	Deactivate(ctx context.Context, id uint64, at time.Time) error
	SetRole(ctx context.Context, id uint64, role models.UserRole) error
}

// UserService manages the user and role directory.
type UserService struct {
	repo      userRepository
	hasher    *PasswordHasher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, hasher *PasswordHasher, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if hasher == nil {
		hasher = NewPasswordHasher(0)
	}
	return &UserService{repo: repo, hasher: hasher, validator: validate, logger: logger, now: time.Now}
}

// CreateUser lets an administrator add a user. The new account must change its password
// before using anything else.
func (s *UserService) CreateUser(ctx context.Context, actor *models.User, req models.CreateUserRequest) (*models.User, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !actor.IsAdministrator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can create users")
	}

	user, err := buildUser(s.validator, s.hasher, req)
	if err != nil {
		return nil, err
	}
	if user.Role == "" {
		user.Role = models.RoleAnnotator
	}
	user.PasswordResetNeeded = true

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
		return nil, storageError(err, "failed to create user")
	}

	s.logger.Info("user created", zap.Uint64("user_id", user.ID), zap.String("role", string(user.Role)), zap.Uint64("actor_id", actor.ID))
	return user, nil
}

// GetByID returns an active user.
func (s *UserService) GetByID(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storageError(err, "failed to load user")
	}
	return user, nil
}

// GetByUsername returns an active user by exact username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storageError(err, "failed to load user")
	}
	return user, nil
}

// ListActive returns a page of active users.
func (s *UserService) ListActive(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.FieldError("role", "must be one of Administrator Staff Reviewer Annotator")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storageError(err, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Deactivate soft deletes a user and drops their sessions.
func (s *UserService) Deactivate(ctx context.Context, actor *models.User, id uint64) error {
	if !actor.IsAdministrator() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can deactivate users")
	}
	if err := s.repo.Deactivate(ctx, id, s.now().UTC()); err != nil {
		return directoryError(err, "failed to deactivate user")
	}
	s.logger.Info("user deactivated", zap.Uint64("user_id", id), zap.Uint64("actor_id", actor.ID))
	return nil
}

// AssignRole changes the role of a user.
func (s *UserService) AssignRole(ctx context.Context, actor *models.User, id uint64, req models.AssignRoleRequest) (*models.User, error) {
	if !actor.IsAdministrator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can assign roles")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid role payload")
	}
	if err := s.repo.SetRole(ctx, id, req.Role); err != nil {
		return nil, directoryError(err, "failed to assign role")
	}
	return s.GetByID(ctx, id)
}

func directoryError(err error, message string) error {
	switch {
	case isNotFound(err):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case errors.Is(err, repository.ErrLastAdministrator):
		return appErrors.Clone(appErrors.ErrConflict, "at least one active administrator must remain")
	default:
		return storageError(err, message)
	}
}

// buildUser validates req and returns an unsaved user holding the hashed password.
func buildUser(validate *validator.Validate, hasher *PasswordHasher, req models.CreateUserRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid user payload")
	}

	hash, err := hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}, nil
}
