package models

import "time"

// Archivo is an uploaded document attached to a project.
type Archivo struct {
	ID             string    `db:"id" json:"id"`
	ProyectoID     string    `db:"proyecto_id" json:"proyecto_id"`
	NombreOriginal string    `db:"nombre_original" json:"nombre_original"`
	NombreAlmacen  string    `db:"nombre_almacen" json:"-"`
	MimeType       string    `db:"mime_type" json:"mime_type"`
	Tamano         int64     `db:"tamano" json:"tamano"`
	SubidoPor      string    `db:"subido_por" json:"subido_por"`
	FechaSubida    time.Time `db:"fecha_subida" json:"fecha_subida"`
}
