package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	"github.com/sgpt-dev/sgpt-api/internal/service"
	"github.com/sgpt-dev/sgpt-api/pkg/response"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit log entries
// @Tags Auditoria
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Filter by user"
// @Param action query string false "Filter by action"
// @Param resource query string false "Filter by resource"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auditoria [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	logs, pagination, err := h.service.List(c.Request.Context(), currentClaims(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, pagination)
}
