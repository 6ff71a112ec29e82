package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/annotatron-api/internal/models"
)

const assetMetaColumns = `id, name, corpus_id, mime_type, kind, checksum, uploader_id, metadata, copyright_restrictions, date_uploaded, octet_length(content) AS size`

// AssetRepository stores asset content and metadata. Metadata reads never load content.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs an asset repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts an asset. A name already used in the corpus yields ErrDuplicate.
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	const query = `INSERT INTO assets (name, corpus_id, content, mime_type, kind, checksum, uploader_id, metadata, copyright_restrictions)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, date_uploaded`
	err := r.db.QueryRowxContext(ctx, query,
		asset.Name,
		asset.CorpusID,
		asset.Content,
		asset.MimeType,
		asset.Kind,
		asset.Checksum,
		asset.UploaderID,
		asset.Metadata,
		asset.CopyrightRestrictions,
	).Scan(&asset.ID, &asset.DateUploaded)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create asset: %w", err)
	}
	asset.Size = int64(len(asset.Content))
	return nil
}

// ListNames returns the names of assets in a corpus.
func (r *AssetRepository) ListNames(ctx context.Context, corpusID uint64) ([]string, error) {
	names := []string{}
	if err := r.db.SelectContext(ctx, &names, `SELECT name FROM assets WHERE corpus_id = $1 ORDER BY name ASC`, corpusID); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return names, nil
}

// FindByName returns asset metadata by name within a corpus.
func (r *AssetRepository) FindByName(ctx context.Context, corpusID uint64, name string) (*models.Asset, error) {
	query := `SELECT ` + assetMetaColumns + ` FROM assets WHERE corpus_id = $1 AND name = $2 LIMIT 1`
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, corpusID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find asset by name: %w", err)
	}
	return &asset, nil
}

// FindByID returns asset metadata by identifier.
func (r *AssetRepository) FindByID(ctx context.Context, id uint64) (*models.Asset, error) {
	query := `SELECT ` + assetMetaColumns + ` FROM assets WHERE id = $1 LIMIT 1`
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find asset by id: %w", err)
	}
	return &asset, nil
}

// FindContent loads the raw bytes of an asset.
func (r *AssetRepository) FindContent(ctx context.Context, id uint64) (*models.AssetContent, error) {
	const query = `SELECT name, mime_type, content, checksum FROM assets WHERE id = $1 LIMIT 1`
	var content models.AssetContent
	if err := r.db.GetContext(ctx, &content, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find asset content: %w", err)
	}
	return &content, nil
}

// Delete removes an asset.
func (r *AssetRepository) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return requireAffected(res)
}

// CheckDuplicate reports whether name is taken in the corpus and which assets already hold
// content with the same checksum.
func (r *AssetRepository) CheckDuplicate(ctx context.Context, corpusID uint64, name, checksum string) (*models.DuplicateReport, error) {
	report := &models.DuplicateReport{MatchingAssets: []string{}}

	const nameQuery = `SELECT EXISTS (SELECT 1 FROM assets WHERE corpus_id = $1 AND name = $2)`
	if err := r.db.GetContext(ctx, &report.NameCollision, nameQuery, corpusID, name); err != nil {
		return nil, fmt.Errorf("check asset name: %w", err)
	}

	const checksumQuery = `SELECT name FROM assets WHERE corpus_id = $1 AND checksum = $2 ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &report.MatchingAssets, checksumQuery, corpusID, checksum); err != nil {
		return nil, fmt.Errorf("check asset checksum: %w", err)
	}
	report.ChecksumMatches = len(report.MatchingAssets)

	return report, nil
}
