package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/annotatron-api/internal/models"
)

// CorpusRepository manages corpora.
type CorpusRepository struct {
	db *sqlx.DB
}

// NewCorpusRepository constructs a corpus repository.
func NewCorpusRepository(db *sqlx.DB) *CorpusRepository {
	return &CorpusRepository{db: db}
}

// Create inserts a corpus. A taken name yields ErrDuplicate.
func (r *CorpusRepository) Create(ctx context.Context, corpus *models.Corpus) error {
	const query = `INSERT INTO corpora (name, description, copyright_restrictions) VALUES ($1, $2, $3) RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, corpus.Name, corpus.Description, corpus.CopyrightRestrictions).Scan(&corpus.ID, &corpus.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create corpus: %w", err)
	}
	return nil
}

// ListNames returns every corpus name in alphabetical order.
func (r *CorpusRepository) ListNames(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := r.db.SelectContext(ctx, &names, `SELECT name FROM corpora ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list corpora: %w", err)
	}
	return names, nil
}

// FindByName returns a corpus by its unique name.
func (r *CorpusRepository) FindByName(ctx context.Context, name string) (*models.Corpus, error) {
	const query = `SELECT id, name, description, copyright_restrictions, created_at FROM corpora WHERE name = $1 LIMIT 1`
	var corpus models.Corpus
	if err := r.db.GetContext(ctx, &corpus, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find corpus by name: %w", err)
	}
	return &corpus, nil
}
