package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
	"github.com/noah-isme/annotatron-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing the authenticated *models.User.
	ContextUserKey = "currentUser"
	// ContextTokenKey stores the bearer token value that authenticated the request.
	ContextTokenKey = "currentToken"
)

// TokenResolver maps a bearer token to its active user. Unknown tokens resolve to nil.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// Session resolves the bearer token when one is presented. A request without an
// Authorization header continues anonymously; any scheme other than Bearer, matched
// case-sensitively, is rejected with 406.
func Session(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}

		scheme, token, _ := strings.Cut(header, " ")
		if scheme != "Bearer" {
			response.Error(c, appErrors.ErrNotAcceptable)
			c.Abort()
			return
		}
		token = strings.TrimSpace(token)
		if token == "" || strings.ContainsAny(token, " \t") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		user, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if user != nil {
			c.Set(ContextUserKey, user)
			c.Set(ContextTokenKey, token)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// CurrentToken returns the bearer token that authenticated the request.
func CurrentToken(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}
