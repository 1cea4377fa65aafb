package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tutorhub/backoffice-api/internal/models"
	appErrors "github.com/tutorhub/backoffice-api/pkg/errors"
	"github.com/tutorhub/backoffice-api/pkg/response"
)

// AccessPolicy is the single capability gate for protected routes. It is
// constructed once from configuration; the root-admin email and the roles
// are never read from ambient state at request time.
type AccessPolicy struct {
	rootEmail string
}

// NewAccessPolicy builds the gate around the configured root-admin email.
func NewAccessPolicy(rootEmail string) *AccessPolicy {
	return &AccessPolicy{rootEmail: strings.ToLower(strings.TrimSpace(rootEmail))}
}

// Allowed reports whether the claims pass for the given role set: the root
// admin and superusers always pass, everyone else needs a listed role.
func (p *AccessPolicy) Allowed(claims *models.JWTClaims, roles ...models.UserRole) bool {
	if claims == nil {
		return false
	}
	if p.rootEmail != "" && strings.EqualFold(claims.Email, p.rootEmail) {
		return true
	}
	if claims.Superuser {
		return true
	}
	for _, role := range roles {
		if claims.Role == role {
			return true
		}
	}
	return false
}

// Require returns middleware enforcing the gate for a role set.
func (p *AccessPolicy) Require(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !p.Allowed(claims, roles...) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser extracts the verified claims attached by the JWT middleware.
func CurrentUser(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
