package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/internal/repository"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
	"github.com/noah-isme/annotatron-api/pkg/integrity"
	"github.com/noah-isme/annotatron-api/pkg/storage"
)

type assetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	ListNames(ctx context.Context, corpusID uint64) ([]string, error)
	FindByName(ctx context.Context, corpusID uint64, name string) (*models.Asset, error)
	FindByID(ctx context.Context, id uint64) (*models.Asset, error)
	FindContent(ctx context.Context, id uint64) (*models.AssetContent, error)
	Delete(ctx context.Context, id uint64) error
	CheckDuplicate(ctx context.Context, corpusID uint64, name, checksum string) (*models.DuplicateReport, error)
}

type contentLinkSigner interface {
	Generate(assetID uint64) (string, time.Time, error)
	Parse(token string) (uint64, error)
}

// AssetConfig bounds uploads.
type AssetConfig struct {
	MaxContentBytes int64
}

// AssetService runs the upload integrity pipeline and serves stored content.
type AssetService struct {
	repo      assetRepository
	corpora   *CorpusService
	signer    contentLinkSigner
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cfg       AssetConfig
}

// NewAssetService constructs an AssetService.
func NewAssetService(repo assetRepository, corpora *CorpusService, signer contentLinkSigner, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cfg AssetConfig) *AssetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = 64 * 1024 * 1024
	}
	return &AssetService{
		repo:      repo,
		corpora:   corpora,
		signer:    signer,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Upload stores a new asset in corpusName. The checksum is always computed server side; a
// client supplied checksum must match it. Content already present under another name is
// accepted with a warning.
func (s *AssetService) Upload(ctx context.Context, actor *models.User, corpusName string, req models.UploadAssetRequest) (*models.AssetUploadResult, error) {
	if !actor.HasRole(models.RoleAdministrator, models.RoleStaff) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid asset payload")
	}

	content, err := integrity.DecodeContent(req.Content)
	if err != nil {
		return nil, appErrors.FieldError("content", "must be standard base64")
	}
	if int64(len(content)) > s.cfg.MaxContentBytes {
		return nil, appErrors.FieldError("content", "exceeds the maximum asset size")
	}

	filename := req.Filename
	if filename == "" {
		filename = req.Name
	}
	kind, err := integrity.InferKind(filename, content, req.Kind, req.AllowText)
	if err != nil {
		return nil, appErrors.FieldError("kind", err.Error())
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = integrity.InferMIME(filename, content)
	}

	checksum := integrity.ComputeChecksum(content)
	if req.Checksum != "" && !integrity.VerifyChecksum(content, req.Checksum) {
		return nil, appErrors.FieldError("checksum", "does not match content")
	}

	ok, warnings := integrity.Validate(integrity.Subject{Content: content, MimeType: mimeType, Kind: kind, Checksum: checksum})
	if !ok {
		return nil, appErrors.FieldError("content", "content is empty")
	}

	corpus, err := s.corpora.Get(ctx, corpusName)
	if err != nil {
		return nil, err
	}

	report, err := s.repo.CheckDuplicate(ctx, corpus.ID, req.Name, checksum)
	if err != nil {
		return nil, storageError(err, "failed to check duplicates")
	}
	if report.NameCollision {
		return nil, appErrors.Clone(appErrors.ErrConflict, "asset name already used in this corpus")
	}
	if report.ChecksumMatches > 0 {
		warnings = append(warnings, "identical content already stored as: "+strings.Join(report.MatchingAssets, ", "))
	}

	metadata := req.Metadata
	if len(metadata) == 0 {
		metadata = types.JSONText("{}")
	}
	uploader := actor.ID
	asset := &models.Asset{
		Name:                  req.Name,
		CorpusID:              corpus.ID,
		Content:               content,
		MimeType:              mimeType,
		Kind:                  kind,
		Checksum:              checksum,
		UploaderID:            &uploader,
		Metadata:              metadata,
		CopyrightRestrictions: req.CopyrightRestrictions,
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "asset name already used in this corpus")
		}
		return nil, storageError(err, "failed to store asset")
	}

	s.metrics.AssetUploaded(string(kind), report.ChecksumMatches > 0)
	s.logger.Info("asset uploaded",
		zap.Uint64("asset_id", asset.ID),
		zap.String("corpus", corpus.Name),
		zap.String("kind", string(kind)),
		zap.Int64("size", asset.Size),
		zap.Int("checksum_matches", report.ChecksumMatches),
	)

	return &models.AssetUploadResult{Asset: asset, Warnings: warnings}, nil
}

// CheckDuplicate reports name and content collisions for a prospective upload.
func (s *AssetService) CheckDuplicate(ctx context.Context, actor *models.User, corpusName string, req models.DuplicateCheckRequest) (*models.DuplicateReport, error) {
	if !actor.HasRole(models.RoleAdministrator, models.RoleStaff) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid duplicate check payload")
	}

	corpus, err := s.corpora.Get(ctx, corpusName)
	if err != nil {
		return nil, err
	}
	report, err := s.repo.CheckDuplicate(ctx, corpus.ID, req.Name, strings.ToLower(req.Checksum))
	if err != nil {
		return nil, storageError(err, "failed to check duplicates")
	}
	return report, nil
}

// ListNames returns the asset names of a corpus.
func (s *AssetService) ListNames(ctx context.Context, corpusName string) ([]string, error) {
	corpus, err := s.corpora.Get(ctx, corpusName)
	if err != nil {
		return nil, err
	}
	names, err := s.repo.ListNames(ctx, corpus.ID)
	if err != nil {
		return nil, storageError(err, "failed to list assets")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Get returns asset metadata by corpus and name.
func (s *AssetService) Get(ctx context.Context, corpusName, name string) (*models.Asset, error) {
	corpus, err := s.corpora.Get(ctx, corpusName)
	if err != nil {
		return nil, err
	}
	asset, err := s.repo.FindByName(ctx, corpus.ID, name)
	if err != nil {
		return nil, assetError(err, "failed to load asset")
	}
	return asset, nil
}

// GetByID returns asset metadata.
func (s *AssetService) GetByID(ctx context.Context, id uint64) (*models.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, assetError(err, "failed to load asset")
	}
	return asset, nil
}

// Content returns the stored bytes of an asset.
func (s *AssetService) Content(ctx context.Context, id uint64) (*models.AssetContent, error) {
	content, err := s.repo.FindContent(ctx, id)
	if err != nil {
		return nil, assetError(err, "failed to load asset content")
	}
	return content, nil
}

// Delete removes an asset from a corpus.
func (s *AssetService) Delete(ctx context.Context, actor *models.User, corpusName, name string) error {
	if !actor.HasRole(models.RoleAdministrator, models.RoleStaff) {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	asset, err := s.Get(ctx, corpusName, name)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, asset.ID); err != nil {
		return assetError(err, "failed to delete asset")
	}
	s.logger.Info("asset deleted", zap.Uint64("asset_id", asset.ID), zap.Uint64("actor_id", actor.ID))
	return nil
}

// Link issues a signed, expiring token that grants access to an asset's content without a
// bearer session.
func (s *AssetService) Link(ctx context.Context, id uint64) (string, time.Time, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return "", time.Time{}, err
	}
	token, expires, err := s.signer.Generate(id)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign content link")
	}
	return token, expires, nil
}

// ContentByLink serves the content a signed token points at.
func (s *AssetService) ContentByLink(ctx context.Context, token string) (*models.AssetContent, error) {
	id, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "content link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
	}
	return s.Content(ctx, id)
}

func assetError(err error, message string) error {
	if isNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, "asset not found")
	}
	return storageError(err, message)
}
