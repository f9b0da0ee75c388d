package models

import "time"

// Audit actions recorded by the platform.
const (
	AuditActionLogin          = "auth.login"
	AuditActionLogout         = "auth.logout"
	AuditActionRegister       = "auth.registro"
	AuditActionPasswordChange = "auth.password_change"
	AuditActionUserCreate     = "usuarios.create"
	AuditActionUserUpdate     = "usuarios.update"
	AuditActionUserDelete     = "usuarios.delete"
	AuditActionProjectCreate  = "proyectos.create"
	AuditActionProjectUpdate  = "proyectos.update"
	AuditActionProjectDelete  = "proyectos.delete"
	AuditActionTransition     = "proyectos.transicion"
	AuditActionAssignTutor    = "proyectos.asignar_tutor"
	AuditActionFileUpload     = "archivos.upload"
	AuditActionFileDelete     = "archivos.delete"
)

// AuditLog is an append-only record of a sensitive action.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RequestMeta carries per-request client details into audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuditFilter constrains audit listing queries.
type AuditFilter struct {
	UserID   string
	Action   string
	Resource string
	Page     int
	PageSize int
}
