package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/impact-assessment-api/internal/models"
	appErrors "github.com/noah-isme/impact-assessment-api/pkg/errors"
	"github.com/noah-isme/impact-assessment-api/pkg/response"
)

// RequireRoles rejects requests whose authenticated role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this action"))
			c.Abort()
			return
		}
		c.Next()
	}
}
