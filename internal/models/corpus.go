package models

import "time"

// Corpus is a named collection of assets and questions.
type Corpus struct {
	ID                    uint64    `db:"id" json:"-"`
	Name                  string    `db:"name" json:"name"`
	Description           string    `db:"description" json:"description"`
	CopyrightRestrictions string    `db:"copyright_restrictions" json:"copyrightRestrictions"`
	CreatedAt             time.Time `db:"created_at" json:"created"`
}

// CreateCorpusRequest payload for creating a corpus.
type CreateCorpusRequest struct {
	Name                  string `json:"name" validate:"required,max=255"`
	Description           string `json:"description"`
	CopyrightRestrictions string `json:"copyrightRestrictions"`
}
