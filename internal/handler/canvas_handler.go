package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/dto"
	"github.com/sgpt-dev/sgpt-api/internal/service"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
	"github.com/sgpt-dev/sgpt-api/pkg/response"
)

// CanvasHandler streams assistant-drafted thesis sections over SSE.
type CanvasHandler struct {
	service *service.CanvasService
}

// NewCanvasHandler creates a new handler.
func NewCanvasHandler(svc *service.CanvasService) *CanvasHandler {
	return &CanvasHandler{service: svc}
}

// Generate godoc
// @Summary Stream a drafted thesis section
// @Description Server-sent events stream of content deltas. EventSource
// clients authenticate with the token query parameter.
// @Tags Canvas
// @Produce text/event-stream
// @Param proyecto_id query string true "Project ID"
// @Param seccion query string true "Section to draft"
// @Param token query string true "Access token"
// @Success 200
// @Failure 400 {object} response.Envelope
// @Router /canvas/generar-capitulo-stream [get]
func (h *CanvasHandler) Generate(c *gin.Context) {
	var query dto.CanvasStreamQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "proyecto_id requerido"))
		return
	}
	if !service.ValidSection(query.Seccion) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sección desconocida: %s", query.Seccion)))
		return
	}
	h.stream(c, query.ProyectoID, query.Seccion)
}

// GenerateSummary godoc
// @Summary Stream the drafted executive summary
// @Tags Canvas
// @Produce text/event-stream
// @Param proyecto_id query string true "Project ID"
// @Param token query string true "Access token"
// @Success 200
// @Failure 400 {object} response.Envelope
// @Router /canvas/generar-resumen-stream [get]
func (h *CanvasHandler) GenerateSummary(c *gin.Context) {
	projectID := c.Query("proyecto_id")
	if projectID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "proyecto_id requerido"))
		return
	}
	h.stream(c, projectID, service.CanvasSectionResumen)
}

func (h *CanvasHandler) stream(c *gin.Context, projectID, section string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "streaming no soportado"))
		return
	}

	emit := func(delta string) error {
		payload, err := json.Marshal(gin.H{"delta": delta})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	text, err := h.service.GenerateSection(c.Request.Context(), currentClaims(c), projectID, section, emit)
	if err != nil {
		// Headers are already sent; surface the failure as an SSE event.
		appErr := appErrors.FromError(err)
		payload, _ := json.Marshal(gin.H{"error": appErr.Message})
		fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", payload)
		flusher.Flush()
		return
	}

	final, _ := json.Marshal(gin.H{"texto": text})
	fmt.Fprintf(c.Writer, "event: done\ndata: %s\n\n", final)
	flusher.Flush()
}
