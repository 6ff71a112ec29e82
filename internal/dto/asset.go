package dto

import (
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/pkg/integrity"
)

// AssetResponse is the metadata view of an asset. Content is served separately.
type AssetResponse struct {
	ID                    string         `json:"id"`
	Name                  string         `json:"name"`
	Corpus                string         `json:"corpus"`
	MimeType              string         `json:"mimeType"`
	Kind                  integrity.Kind `json:"kind"`
	Checksum              string         `json:"checksum"`
	Size                  int64          `json:"size"`
	Uploader              *string        `json:"uploader,omitempty"`
	Metadata              types.JSONText `json:"metadata"`
	CopyrightRestrictions string         `json:"copyrightRestrictions"`
	DateUploaded          time.Time      `json:"dateUploaded"`
}

// NewAssetResponse renders asset metadata. corpus is the owning corpus name.
func NewAssetResponse(ids IDCodec, corpus string, asset *models.Asset) AssetResponse {
	metadata := asset.Metadata
	if len(metadata) == 0 {
		metadata = types.JSONText("{}")
	}
	return AssetResponse{
		ID:                    ids.Encode(asset.ID),
		Name:                  asset.Name,
		Corpus:                corpus,
		MimeType:              asset.MimeType,
		Kind:                  asset.Kind,
		Checksum:              asset.Checksum,
		Size:                  asset.Size,
		Uploader:              encodeOptional(ids, asset.UploaderID),
		Metadata:              metadata,
		CopyrightRestrictions: asset.CopyrightRestrictions,
		DateUploaded:          asset.DateUploaded,
	}
}

// AssetContentResponse carries content as standard base64 for JSON clients.
type AssetContentResponse struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

// NewAssetContentResponse encodes stored content.
func NewAssetContentResponse(content *models.AssetContent) AssetContentResponse {
	return AssetContentResponse{
		Name:     content.Name,
		MimeType: content.MimeType,
		Checksum: content.Checksum,
		Content:  integrity.EncodeContent(content.Content),
	}
}

// ContentLinkResponse is a signed, expiring download link.
type ContentLinkResponse struct {
	URL     string    `json:"url"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// CorpusResponse is the external view of a corpus.
type CorpusResponse struct {
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	CopyrightRestrictions string    `json:"copyrightRestrictions"`
	Created               time.Time `json:"created"`
}

// NewCorpusResponse renders a corpus.
func NewCorpusResponse(corpus *models.Corpus) CorpusResponse {
	return CorpusResponse{
		Name:                  corpus.Name,
		Description:           corpus.Description,
		CopyrightRestrictions: corpus.CopyrightRestrictions,
		Created:               corpus.CreatedAt,
	}
}
