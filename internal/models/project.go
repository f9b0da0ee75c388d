package models

import "time"

// ProjectStatus captures the review workflow states of a degree project.
type ProjectStatus string

const (
	StatusDraft       ProjectStatus = "borrador"
	StatusSubmitted   ProjectStatus = "enviado"
	StatusInReview    ProjectStatus = "en_revision"
	StatusApproved    ProjectStatus = "aprobado"
	StatusRejected    ProjectStatus = "rechazado"
	StatusCorrections ProjectStatus = "corregir"
)

// Valid reports whether the status is one of the known workflow states.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusInReview, StatusApproved, StatusRejected, StatusCorrections:
		return true
	}
	return false
}

// Project is the central entity: a thesis proposal owned by exactly one
// student, optionally assigned to one tutor for review.
type Project struct {
	ID                  string        `db:"id" json:"id"`
	EstudianteID        string        `db:"estudiante_id" json:"estudiante_id"`
	TutorID             *string       `db:"tutor_id" json:"tutor_id,omitempty"`
	Titulo              string        `db:"titulo" json:"titulo"`
	Descripcion         string        `db:"descripcion" json:"descripcion"`
	Planteamiento       string        `db:"planteamiento" json:"planteamiento"`
	SolucionProblema    string        `db:"solucion_problema" json:"solucion_problema"`
	ObjetivoGeneral     string        `db:"objetivo_general" json:"objetivo_general"`
	ObjetivosEspecifico string        `db:"objetivos_especificos" json:"objetivos_especificos"`
	Metodologia         string        `db:"metodologia" json:"metodologia"`
	Estado              ProjectStatus `db:"estado" json:"estado"`
	Version             int           `db:"version" json:"version"`
	FechaCreacion       time.Time     `db:"fecha_creacion" json:"fecha_creacion"`
	FechaEnvio          *time.Time    `db:"fecha_envio" json:"fecha_envio,omitempty"`
	FechaRevision       *time.Time    `db:"fecha_revision" json:"fecha_revision,omitempty"`
	FechaAprobacion     *time.Time    `db:"fecha_aprobacion" json:"fecha_aprobacion,omitempty"`
	UpdatedAt           time.Time     `db:"updated_at" json:"fecha_actualizacion"`
}

// TransitionRule describes one edge of the review workflow.
type TransitionRule struct {
	// Actor is the role allowed to trigger the transition. Students must own
	// the project, tutors must be the assigned reviewer.
	Actor UserRole
	// RequiresObservation forces a non-empty observation text.
	RequiresObservation bool
	// AppendsObservation records any provided text as an Observación within
	// the same transaction as the state change.
	AppendsObservation bool
}

// transitions is the authoritative workflow table. Edges absent from the map
// are forbidden regardless of role. corregir → corregir is a deliberate
// self-loop: the state write is idempotent but the observation is appended.
var transitions = map[ProjectStatus]map[ProjectStatus]TransitionRule{
	StatusDraft: {
		StatusSubmitted: {Actor: RoleStudent},
	},
	StatusSubmitted: {
		StatusInReview: {Actor: RoleTutor},
	},
	StatusInReview: {
		StatusApproved:    {Actor: RoleTutor},
		StatusRejected:    {Actor: RoleTutor, AppendsObservation: true},
		StatusCorrections: {Actor: RoleTutor, RequiresObservation: true, AppendsObservation: true},
	},
	StatusCorrections: {
		StatusApproved:    {Actor: RoleTutor},
		StatusRejected:    {Actor: RoleTutor, AppendsObservation: true},
		StatusCorrections: {Actor: RoleTutor, RequiresObservation: true, AppendsObservation: true},
		StatusSubmitted:   {Actor: RoleStudent},
	},
	StatusRejected: {
		StatusApproved:  {Actor: RoleTutor},
		StatusSubmitted: {Actor: RoleStudent},
	},
}

// LookupTransition returns the rule governing from → to, if the edge exists.
func LookupTransition(from, to ProjectStatus) (TransitionRule, bool) {
	rule, ok := transitions[from][to]
	return rule, ok
}

// CanEdit reports whether the user may mutate the project content fields.
// Only the owning student may edit, and only before approval enters review.
func (p *Project) CanEdit(u *JWTClaims) bool {
	if u == nil || u.Rol != RoleStudent || p.EstudianteID != u.UserID {
		return false
	}
	switch p.Estado {
	case StatusDraft, StatusCorrections, StatusRejected:
		return true
	}
	return false
}

// IsAssignedTutor reports whether the user is the project's assigned tutor.
func (p *Project) IsAssignedTutor(u *JWTClaims) bool {
	return u != nil && u.Rol == RoleTutor && p.TutorID != nil && *p.TutorID == u.UserID
}

// IsOwner reports whether the user is the owning student.
func (p *Project) IsOwner(u *JWTClaims) bool {
	return u != nil && u.Rol == RoleStudent && p.EstudianteID == u.UserID
}

// ProjectFilter constrains project listing queries.
type ProjectFilter struct {
	EstudianteID string
	TutorID      string
	Estado       *ProjectStatus
	Search       string
	Page         int
	PageSize     int
}

// ProjectStats aggregates project counts for the admin dashboard.
type ProjectStats struct {
	Total       int                   `json:"total"`
	PorEstado   map[ProjectStatus]int `json:"por_estado"`
	SinTutor    int                   `json:"sin_tutor"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// ProjectSeriesPoint is one month of the creation/approval chart.
type ProjectSeriesPoint struct {
	Mes       string `db:"mes" json:"mes"`
	Creados   int    `db:"creados" json:"creados"`
	Aprobados int    `db:"aprobados" json:"aprobados"`
}
