package models

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// Conversation groups chat messages for one user session.
type Conversation struct {
	ID            string    `db:"id" json:"id"`
	UsuarioID     string    `db:"usuario_id" json:"usuario_id"`
	Titulo        string    `db:"titulo" json:"titulo"`
	FechaCreacion time.Time `db:"fecha_creacion" json:"fecha_creacion"`
	UpdatedAt     time.Time `db:"updated_at" json:"fecha_actualizacion"`
}

// ChatMessage is one message within a conversation.
type ChatMessage struct {
	ID             string    `db:"id" json:"id"`
	ConversacionID string    `db:"conversacion_id" json:"conversacion_id"`
	Rol            ChatRole  `db:"rol" json:"rol"`
	Contenido      string    `db:"contenido" json:"contenido"`
	ArchivoID      *string   `db:"archivo_id" json:"archivo_id,omitempty"`
	FechaCreacion  time.Time `db:"fecha_creacion" json:"fecha_creacion"`
}

// ChatUpload stores metadata of a file shared with the assistant.
type ChatUpload struct {
	ID             string    `db:"id" json:"id"`
	UsuarioID      string    `db:"usuario_id" json:"usuario_id"`
	NombreOriginal string    `db:"nombre_original" json:"nombre_original"`
	NombreAlmacen  string    `db:"nombre_almacen" json:"-"`
	MimeType       string    `db:"mime_type" json:"mime_type"`
	Tamano         int64     `db:"tamano" json:"tamano"`
	FechaSubida    time.Time `db:"fecha_subida" json:"fecha_subida"`
}
