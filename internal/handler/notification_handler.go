package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/service"
	"github.com/sgpt-dev/sgpt-api/pkg/response"
)

// NotificationHandler wires HTTP endpoints to the notification service.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler creates a new handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary List the caller's notifications
// @Tags Notificaciones
// @Produce json
// @Security BearerAuth
// @Param no_leidas query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /notificaciones [get]
func (h *NotificationHandler) List(c *gin.Context) {
	onlyUnread, _ := strconv.ParseBool(c.DefaultQuery("no_leidas", "false"))

	notifications, err := h.service.List(c.Request.Context(), currentClaims(c), onlyUnread)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// MarkRead godoc
// @Summary Mark one notification as read
// @Tags Notificaciones
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /notificaciones/{id}/leida [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), currentClaims(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark all notifications as read
// @Tags Notificaciones
// @Security BearerAuth
// @Success 204
// @Router /notificaciones/leidas [patch]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.service.MarkAllRead(c.Request.Context(), currentClaims(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
