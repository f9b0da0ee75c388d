package models

import "time"

// NotificationType distinguishes why a notification was produced.
type NotificationType string

const (
	NotificationProjectSubmitted NotificationType = "proyecto_enviado"
	NotificationProjectReviewed  NotificationType = "proyecto_revisado"
	NotificationTutorAssigned    NotificationType = "tutor_asignado"
)

// Notification is an in-app message for a single user.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	UsuarioID     string           `db:"usuario_id" json:"usuario_id"`
	Tipo          NotificationType `db:"tipo" json:"tipo"`
	Titulo        string           `db:"titulo" json:"titulo"`
	Mensaje       string           `db:"mensaje" json:"mensaje"`
	ProyectoID    *string          `db:"proyecto_id" json:"proyecto_id,omitempty"`
	Leida         bool             `db:"leida" json:"leida"`
	FechaCreacion time.Time        `db:"fecha_creacion" json:"fecha_creacion"`
}
