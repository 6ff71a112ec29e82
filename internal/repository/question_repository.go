package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/annotatron-api/internal/models"
)

const questionColumns = `id, corpus_id, creator_id, kind, summary_code, content, created_at`

// QuestionRepository stores questions as a kind tag plus JSON content.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository constructs a question repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Create inserts a question. A summary code already used in the corpus yields ErrDuplicate.
func (r *QuestionRepository) Create(ctx context.Context, record *models.QuestionRecord) error {
	const query = `INSERT INTO questions (corpus_id, creator_id, kind, summary_code, content) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, record.CorpusID, record.CreatorID, record.Kind, record.SummaryCode, record.Content).
		Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// ListByCorpus returns the questions of a corpus in creation order.
func (r *QuestionRepository) ListByCorpus(ctx context.Context, corpusID uint64) ([]models.QuestionRecord, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE corpus_id = $1 ORDER BY id ASC`
	records := []models.QuestionRecord{}
	if err := r.db.SelectContext(ctx, &records, query, corpusID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return records, nil
}

// FindByID returns a question scoped to its corpus.
func (r *QuestionRepository) FindByID(ctx context.Context, corpusID, id uint64) (*models.QuestionRecord, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE corpus_id = $1 AND id = $2 LIMIT 1`
	var record models.QuestionRecord
	if err := r.db.GetContext(ctx, &record, query, corpusID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find question: %w", err)
	}
	return &record, nil
}

// Delete removes a question scoped to its corpus.
func (r *QuestionRepository) Delete(ctx context.Context, corpusID, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE corpus_id = $1 AND id = $2`, corpusID, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return requireAffected(res)
}
