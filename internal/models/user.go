package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "estudiante"
	RoleTutor   UserRole = "tutor"
	RoleAdmin   UserRole = "administrador"
)

// User represents an application user stored in the usuarios table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Nombre       string     `db:"nombre" json:"nombre"`
	Apellido     string     `db:"apellido" json:"apellido"`
	Rol          UserRole   `db:"rol" json:"rol"`
	Cedula       *string    `db:"cedula" json:"cedula,omitempty"`
	Telefono     *string    `db:"telefono" json:"telefono,omitempty"`
	Activo       bool       `db:"activo" json:"activo"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"fecha_creacion"`
	UpdatedAt    time.Time  `db:"updated_at" json:"fecha_actualizacion"`
}

// FullName joins nombre and apellido for display and token claims.
func (u *User) FullName() string {
	if u.Apellido == "" {
		return u.Nombre
	}
	return u.Nombre + " " + u.Apellido
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Rol       *UserRole
	Activo    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
