package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/middleware"
	"github.com/sgpt-dev/sgpt-api/internal/models"
)

// currentClaims extracts the authenticated user's claims from the context.
func currentClaims(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requestMeta captures client details for audit records.
func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
