package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tutorhub/backoffice-api/internal/middleware"
	"github.com/tutorhub/backoffice-api/internal/models"
	"github.com/tutorhub/backoffice-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

func auditMetaFromContext(c *gin.Context) service.AuditMeta {
	meta := service.AuditMeta{IPAddress: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := claimsFromContext(c); claims != nil {
		id := claims.UserID
		meta.ActorID = &id
	}
	return meta
}

func lessonActorFromContext(c *gin.Context) service.LessonActor {
	actor := service.LessonActor{IPAddress: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := claimsFromContext(c); claims != nil {
		actor.ID = claims.UserID
		actor.Role = claims.Role
		actor.Superuser = claims.Superuser
	}
	return actor
}
