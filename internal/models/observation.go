package models

import "time"

// Observation is an append-only review note attached to a project. Rows are
// never updated or deleted; ordering is by fecha_creacion.
type Observation struct {
	ID             string        `db:"id" json:"id"`
	ProyectoID     string        `db:"proyecto_id" json:"proyecto_id"`
	UsuarioID      string        `db:"usuario_id" json:"usuario_id"`
	Observacion    string        `db:"observacion" json:"observacion"`
	EstadoProyecto ProjectStatus `db:"estado_proyecto" json:"estado_proyecto"`
	AutorNombre    string        `db:"autor_nombre" json:"autor_nombre"`
	FechaCreacion  time.Time     `db:"fecha_creacion" json:"fecha_creacion"`
}
