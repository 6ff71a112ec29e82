package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

// SetupChecker reports whether the initial administrator still has to be created.
type SetupChecker interface {
	RequiresSetup(ctx context.Context) (bool, error)
}

// SetupGate answers 409 SETUP_REQUIRED until the system has been configured.
func SetupGate(checker SetupChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		required, err := checker.RequiresSetup(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if required {
			response.Error(c, appErrors.ErrSetupRequired)
			c.Abort()
			return
		}
		c.Next()
	}
}
