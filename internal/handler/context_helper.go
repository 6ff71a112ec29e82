package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/dto"
	"github.com/noah-isme/annotatron-api/internal/middleware"
	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

// bindJSON decodes the request body into dst, writing a 400 on failure.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

// pathID decodes an obfuscated identifier from the named path parameter. Malformed values
// are reported as 404 so identifiers cannot be probed.
func pathID(c *gin.Context, ids dto.IDCodec, param string) (uint64, bool) {
	id, err := ids.Decode(c.Param(param))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "resource not found"))
		return 0, false
	}
	return id, true
}
