package dto

import "github.com/sgpt-dev/sgpt-api/internal/models"

// CreateProjectRequest is the payload for registering a new proposal.
type CreateProjectRequest struct {
	Titulo              string `json:"titulo" validate:"required,min=5"`
	Descripcion         string `json:"descripcion" validate:"required,min=20"`
	Planteamiento       string `json:"planteamiento"`
	SolucionProblema    string `json:"solucion_problema"`
	ObjetivoGeneral     string `json:"objetivo_general"`
	ObjetivosEspecifico string `json:"objetivos_especificos"`
	Metodologia         string `json:"metodologia"`
}

// UpdateProjectRequest rewrites the content fields of a proposal.
type UpdateProjectRequest struct {
	Titulo              string `json:"titulo" validate:"required,min=5"`
	Descripcion         string `json:"descripcion" validate:"required,min=20"`
	Planteamiento       string `json:"planteamiento"`
	SolucionProblema    string `json:"solucion_problema"`
	ObjetivoGeneral     string `json:"objetivo_general"`
	ObjetivosEspecifico string `json:"objetivos_especificos"`
	Metodologia         string `json:"metodologia"`
}

// ChangeStatusRequest triggers a workflow transition. Observacion is required
// for transitions whose rule demands it.
type ChangeStatusRequest struct {
	Estado      models.ProjectStatus `json:"estado" validate:"required"`
	Observacion string               `json:"observacion"`
}

// AssignTutorRequest sets the reviewing tutor (admins only).
type AssignTutorRequest struct {
	TutorID string `json:"tutor_id" validate:"required,uuid4"`
}

// CreateObservationRequest appends a standalone review note.
type CreateObservationRequest struct {
	Observacion string `json:"observacion" validate:"required"`
}

// ProjectListQuery captures list filters from the query string.
type ProjectListQuery struct {
	Estado   string `form:"estado"`
	Search   string `form:"search"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}
