package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/service"
	"github.com/sgpt-dev/sgpt-api/pkg/response"
)

// ReportHandler wires HTTP endpoints to the report service.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Enqueue godoc
// @Summary Queue a project summary PDF
// @Description Returns the job immediately; poll the status endpoint until
// FINISHED and follow result_url
// @Tags Reportes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 202 {object} response.Envelope
// @Router /proyectos/{id}/reporte [post]
func (h *ReportHandler) Enqueue(c *gin.Context) {
	job, err := h.service.Enqueue(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Report job status
// @Tags Reportes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reportes/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	job, err := h.service.Status(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a generated report with a signed token
// @Tags Reportes
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /reportes/descargar [get]
func (h *ReportHandler) Download(c *gin.Context) {
	relPath, err := h.service.OpenByToken(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="reporte.pdf"`)
	c.File(h.service.AbsolutePath(relPath))
}
