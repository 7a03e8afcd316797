package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/impact-assessment-api/internal/middleware"
	"github.com/noah-isme/impact-assessment-api/internal/models"
)

// actorFromContext returns nil for anonymous requests; the service rejects those.
func actorFromContext(c *gin.Context) *models.Actor {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims.Actor()
}
