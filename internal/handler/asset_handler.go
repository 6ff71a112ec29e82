package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/dto"
	"github.com/noah-isme/annotatron-api/internal/middleware"
	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

const (
	defaultMaxContentBytes = 64 << 20
	// room for the JSON envelope and metadata around the base64 content
	uploadBodySlack = 1 << 20
)

type assetService interface {
	Upload(ctx context.Context, actor *models.User, corpusName string, req models.UploadAssetRequest) (*models.AssetUploadResult, error)
	CheckDuplicate(ctx context.Context, actor *models.User, corpusName string, req models.DuplicateCheckRequest) (*models.DuplicateReport, error)
	ListNames(ctx context.Context, corpusName string) ([]string, error)
	Get(ctx context.Context, corpusName, name string) (*models.Asset, error)
	Content(ctx context.Context, id uint64) (*models.AssetContent, error)
	Delete(ctx context.Context, actor *models.User, corpusName, name string) error
	Link(ctx context.Context, id uint64) (string, time.Time, error)
	ContentByLink(ctx context.Context, token string) (*models.AssetContent, error)
}

// AssetHandler serves asset metadata, uploads and content downloads.
type AssetHandler struct {
	service       assetService
	ids           dto.IDCodec
	contentPath   string
	maxUploadBody int64
}

// NewAssetHandler creates an asset handler. contentPath is the public route prefix signed
// links are served under, e.g. "/api/v1/content". maxContentBytes bounds decoded asset
// content; upload bodies are capped at its base64 length plus envelope slack.
func NewAssetHandler(svc assetService, ids dto.IDCodec, contentPath string, maxContentBytes int64) *AssetHandler {
	if maxContentBytes <= 0 {
		maxContentBytes = defaultMaxContentBytes
	}
	return &AssetHandler{
		service:       svc,
		ids:           ids,
		contentPath:   strings.TrimRight(contentPath, "/"),
		maxUploadBody: base64Len(maxContentBytes) + uploadBodySlack,
	}
}

func base64Len(n int64) int64 {
	return (n + 2) / 3 * 4
}

// List godoc
// @Summary List assets
// @Description Asset names of a corpus in name order
// @Tags Assets
// @Security BearerAuth
// @Produce json
// @Param corpus path string true "Corpus name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /corpora/{corpus}/assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	names, err := h.service.ListNames(c.Request.Context(), c.Param("corpus"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, names, nil)
}

// Get godoc
// @Summary Get asset metadata
// @Tags Assets
// @Security BearerAuth
// @Produce json
// @Param corpus path string true "Corpus name"
// @Param asset path string true "Asset name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /corpora/{corpus}/assets/{asset} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	corpus := c.Param("corpus")
	asset, err := h.service.Get(c.Request.Context(), corpus, c.Param("asset"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAssetResponse(h.ids, corpus, asset), nil)
}

// Upload godoc
// @Summary Upload asset
// @Description Stores base64 content after checksum and kind validation. Content identical to stored assets is accepted with a warning in meta.
// @Tags Assets
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param corpus path string true "Corpus name"
// @Param payload body models.UploadAssetRequest true "Asset"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /corpora/{corpus}/assets [post]
func (h *AssetHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBody)

	var req models.UploadAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "asset upload exceeds the content size limit"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid asset payload"))
		return
	}

	corpus := c.Param("corpus")
	result, err := h.service.Upload(c.Request.Context(), currentUser(c), corpus, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(result.Warnings) > 0 {
		middleware.SetMeta(c, "warnings", result.Warnings)
	}
	response.JSON(c, http.StatusCreated, dto.NewAssetResponse(h.ids, corpus, result.Asset), nil, middleware.ExtractMeta(c))
}

// Check godoc
// @Summary Check for duplicates
// @Description Reports name collisions and identical content before uploading
// @Tags Assets
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param corpus path string true "Corpus name"
// @Param payload body models.DuplicateCheckRequest true "Candidate"
// @Success 200 {object} response.Envelope
// @Router /corpora/{corpus}/assets/check [post]
func (h *AssetHandler) Check(c *gin.Context) {
	var req models.DuplicateCheckRequest
	if !bindJSON(c, &req, "invalid duplicate check payload") {
		return
	}
	report, err := h.service.CheckDuplicate(c.Request.Context(), currentUser(c), c.Param("corpus"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Delete godoc
// @Summary Delete asset
// @Tags Assets
// @Security BearerAuth
// @Param corpus path string true "Corpus name"
// @Param asset path string true "Asset name"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /corpora/{corpus}/assets/{asset} [delete]
func (h *AssetHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), currentUser(c), c.Param("corpus"), c.Param("asset")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Content godoc
// @Summary Download asset content
// @Description Raw bytes by default; encoding=base64 returns a JSON envelope
// @Tags Assets
// @Security BearerAuth
// @Produce octet-stream
// @Param id path string true "Asset ID"
// @Param encoding query string false "base64"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /assets/{id}/content [get]
func (h *AssetHandler) Content(c *gin.Context) {
	id, ok := pathID(c, h.ids, "id")
	if !ok {
		return
	}
	content, err := h.service.Content(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if strings.EqualFold(c.Query("encoding"), "base64") {
		response.JSON(c, http.StatusOK, dto.NewAssetContentResponse(content), nil)
		return
	}
	writeContent(c, content)
}

// Link godoc
// @Summary Create a signed content link
// @Description The returned URL serves the content without a bearer token until it expires
// @Tags Assets
// @Security BearerAuth
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assets/{id}/link [get]
func (h *AssetHandler) Link(c *gin.Context) {
	id, ok := pathID(c, h.ids, "id")
	if !ok {
		return
	}
	token, expires, err := h.service.Link(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ContentLinkResponse{
		URL:     h.contentPath + "/" + token,
		Token:   token,
		Expires: expires,
	}, nil)
}

// ContentByLink godoc
// @Summary Download through a signed link
// @Tags Assets
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /content/{token} [get]
func (h *AssetHandler) ContentByLink(c *gin.Context) {
	content, err := h.service.ContentByLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeContent(c, content)
}

func writeContent(c *gin.Context, content *models.AssetContent) {
	mimeType := content.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": content.Name}); disposition != "" {
		c.Header("Content-Disposition", disposition)
	}
	c.Header("X-Content-Checksum", content.Checksum)
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, mimeType, content.Content)
}
