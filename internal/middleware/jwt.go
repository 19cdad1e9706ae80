package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-events-api/internal/models"
	appErrors "github.com/noah-isme/campus-events-api/pkg/errors"
	"github.com/noah-isme/campus-events-api/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated principal.
const ContextUserKey = "currentUser"

// TokenCookie is read when no Authorization header is sent.
const TokenCookie = "token"

type principalValidator interface {
	Validate(token string) (*models.Principal, error)
}

// JWT protects routes by requiring a valid credential.
func JWT(tokens principalValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		principal, err := tokens.Validate(raw)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, principal)
		c.Next()
	}
}

// CurrentPrincipal returns the principal stored by JWT.
func CurrentPrincipal(c *gin.Context) (*models.Principal, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	principal, ok := value.(*models.Principal)
	return principal, ok && principal != nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
			return cookie, nil
		}
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "No token provided")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
