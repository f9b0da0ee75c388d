package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/dto"
	"github.com/sgpt-dev/sgpt-api/internal/service"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
	"github.com/sgpt-dev/sgpt-api/pkg/response"
)

// ProjectHandler wires HTTP endpoints to the project service.
type ProjectHandler struct {
	service *service.ProjectService
}

// NewProjectHandler creates a new handler.
func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: svc}
}

// List godoc
// @Summary List projects scoped to the caller's role
// @Tags Proyectos
// @Produce json
// @Security BearerAuth
// @Param estado query string false "Filter by estado"
// @Param search query string false "Search in title"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /proyectos [get]
func (h *ProjectHandler) List(c *gin.Context) {
	var query dto.ProjectListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "parámetros inválidos"))
		return
	}

	projects, pagination, err := h.service.List(c.Request.Context(), currentClaims(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, projects, pagination)
}

// Get godoc
// @Summary Get project by ID
// @Tags Proyectos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /proyectos/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.service.Get(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Create godoc
// @Summary Register a new proposal in estado borrador
// @Tags Proyectos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /proyectos [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "payload de proyecto inválido"))
		return
	}

	project, err := h.service.Create(c.Request.Context(), currentClaims(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, project)
}

// Update godoc
// @Summary Update project content
// @Description Rewrites content fields and bumps version, only while editable
// @Tags Proyectos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param payload body dto.UpdateProjectRequest true "Project payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /proyectos/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "payload de proyecto inválido"))
		return
	}

	project, err := h.service.Update(c.Request.Context(), currentClaims(c), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, project, nil)
}

// Delete godoc
// @Summary Delete project
// @Tags Proyectos
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /proyectos/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), currentClaims(c), c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangeStatus godoc
// @Summary Apply a workflow transition
// @Description Moves the project along the review workflow, appending the
// observation when the edge requires or accepts one
// @Tags Proyectos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param payload body dto.ChangeStatusRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /proyectos/{id}/estado [patch]
func (h *ProjectHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "payload de transición inválido"))
		return
	}

	project, err := h.service.ChangeStatus(c.Request.Context(), currentClaims(c), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, project, nil)
}

// AssignTutor godoc
// @Summary Assign reviewing tutor
// @Tags Proyectos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param payload body dto.AssignTutorRequest true "Tutor payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /proyectos/{id}/asignar-tutor [patch]
func (h *ProjectHandler) AssignTutor(c *gin.Context) {
	var req dto.AssignTutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "payload inválido"))
		return
	}

	project, err := h.service.AssignTutor(c.Request.Context(), currentClaims(c), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, project, nil)
}

// Observations godoc
// @Summary List review observations
// @Tags Proyectos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /proyectos/{id}/observaciones [get]
func (h *ProjectHandler) Observations(c *gin.Context) {
	observations, err := h.service.Observations(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, observations, nil)
}

// AddObservation godoc
// @Summary Append a review observation without changing estado
// @Tags Proyectos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param payload body dto.CreateObservationRequest true "Observation payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /proyectos/{id}/observaciones [post]
func (h *ProjectHandler) AddObservation(c *gin.Context) {
	var req dto.CreateObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "observación inválida"))
		return
	}

	obs, err := h.service.AddObservation(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, obs)
}

// Stats godoc
// @Summary Project statistics for the admin dashboard
// @Tags Proyectos
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /proyectos/estadisticas [get]
func (h *ProjectHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Series godoc
// @Summary Monthly created/approved chart data
// @Tags Proyectos
// @Produce json
// @Security BearerAuth
// @Param meses query int false "Months back (default 12)"
// @Success 200 {object} response.Envelope
// @Router /proyectos/grafico [get]
func (h *ProjectHandler) Series(c *gin.Context) {
	months, _ := strconv.Atoi(c.DefaultQuery("meses", "12"))
	series, err := h.service.Series(c.Request.Context(), months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil)
}
