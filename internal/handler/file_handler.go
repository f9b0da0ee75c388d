package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/service"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
	"github.com/sgpt-dev/sgpt-api/pkg/response"
)

// FileHandler wires HTTP endpoints to the file service.
type FileHandler struct {
	service *service.FileService
}

// NewFileHandler creates a new handler.
func NewFileHandler(svc *service.FileService) *FileHandler {
	return &FileHandler{service: svc}
}

// Upload godoc
// @Summary Attach a document to a project
// @Tags Archivos
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param archivo formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /proyectos/{id}/archivos [post]
func (h *FileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("archivo")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "archivo requerido"))
		return
	}

	archivo, err := h.service.Upload(c.Request.Context(), currentClaims(c), c.Param("id"), header, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, archivo)
}

// List godoc
// @Summary List project attachments
// @Tags Archivos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /proyectos/{id}/archivos [get]
func (h *FileHandler) List(c *gin.Context) {
	archivos, err := h.service.ListByProject(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archivos, nil)
}

// Sign godoc
// @Summary Issue a signed download token for a file
// @Tags Archivos
// @Produce json
// @Security BearerAuth
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archivos/{id}/descargar [get]
func (h *FileHandler) Sign(c *gin.Context) {
	signed, err := h.service.SignDownload(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed, nil)
}

// Download godoc
// @Summary Download a file with a signed token
// @Description Validates the token issued by the sign endpoint and streams the
// file, no session required
// @Tags Archivos
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /archivos/descargar [get]
func (h *FileHandler) Download(c *gin.Context) {
	archivo, file, err := h.service.OpenByToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archivo.NombreOriginal))
	c.Header("Content-Type", archivo.MimeType)
	c.Header("Content-Length", fmt.Sprintf("%d", archivo.Tamano))
	http.ServeContent(c.Writer, c.Request, archivo.NombreOriginal, archivo.FechaSubida, file)
}

// Delete godoc
// @Summary Delete a file
// @Tags Archivos
// @Security BearerAuth
// @Param id path string true "File ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /archivos/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), currentClaims(c), c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
