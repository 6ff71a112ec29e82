package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/annotatron-api/pkg/integrity"
)

// Asset is an immutable blob stored in a corpus. Content is only loaded when explicitly
// requested.
type Asset struct {
	ID                    uint64         `db:"id"`
	Name                  string         `db:"name"`
	CorpusID              uint64         `db:"corpus_id"`
	Content               []byte         `db:"content"`
	MimeType              string         `db:"mime_type"`
	Kind                  integrity.Kind `db:"kind"`
	Checksum              string         `db:"checksum"`
	UploaderID            *uint64        `db:"uploader_id"`
	Metadata              types.JSONText `db:"metadata"`
	CopyrightRestrictions string         `db:"copyright_restrictions"`
	DateUploaded          time.Time      `db:"date_uploaded"`
	Size                  int64          `db:"size"`
}

// UploadAssetRequest carries base64 content at the API boundary.
type UploadAssetRequest struct {
	Name                  string         `json:"name" validate:"required,max=255"`
	Content               string         `json:"content" validate:"required"`
	MimeType              string         `json:"mimeType" validate:"max=255"`
	Kind                  integrity.Kind `json:"kind" validate:"omitempty,oneof=utf8_text binary audio unknown"`
	Checksum              string         `json:"checksum" validate:"omitempty,hexadecimal,len=128"`
	Metadata              types.JSONText `json:"metadata"`
	CopyrightRestrictions string         `json:"copyrightRestrictions"`
	// Filename drives extension based inference; defaults to Name.
	Filename string `json:"filename" validate:"max=255"`
	// AllowText opts into inferring utf8_text from a .txt filename.
	AllowText bool `json:"allowText"`
}

// DuplicateCheckRequest asks whether an upload would collide with stored assets.
type DuplicateCheckRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Checksum string `json:"checksum" validate:"required,hexadecimal,len=128"`
}

// DuplicateReport is the outcome of a duplicate check.
type DuplicateReport struct {
	NameCollision   bool     `json:"nameCollision"`
	ChecksumMatches int      `json:"checksumMatches"`
	MatchingAssets  []string `json:"matchingAssets"`
}

// AssetUploadResult pairs the stored asset with advisory warnings.
type AssetUploadResult struct {
	Asset    *Asset
	Warnings []string
}

// AssetContent is the raw payload served for downloads.
type AssetContent struct {
	Name     string `db:"name"`
	MimeType string `db:"mime_type"`
	Content  []byte `db:"content"`
	Checksum string `db:"checksum"`
}
