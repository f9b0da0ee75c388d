package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sgpt-dev/sgpt-api/internal/models"
)

// ChatRepository provides database access for assistant conversations.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateConversation starts a new conversation for a user.
func (r *ChatRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if conv.FechaCreacion.IsZero() {
		conv.FechaCreacion = now
	}
	conv.UpdatedAt = now
	const query = `INSERT INTO conversaciones (id, usuario_id, titulo, fecha_creacion, updated_at)
		VALUES (:id, :usuario_id, :titulo, :fecha_creacion, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, conv); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// FindConversation returns a conversation by identifier.
func (r *ChatRepository) FindConversation(ctx context.Context, id string) (*models.Conversation, error) {
	const query = `SELECT id, usuario_id, titulo, fecha_creacion, updated_at FROM conversaciones WHERE id = $1 LIMIT 1`
	var conv models.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns a user's conversations, most recent first.
func (r *ChatRepository) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	const query = `SELECT id, usuario_id, titulo, fecha_creacion, updated_at FROM conversaciones WHERE usuario_id = $1 ORDER BY updated_at DESC`
	var convs []models.Conversation
	if err := r.db.SelectContext(ctx, &convs, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// DeleteConversation removes a conversation and its messages (schema cascade).
func (r *ChatRepository) DeleteConversation(ctx context.Context, id string) error {
	const query = `DELETE FROM conversaciones WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// CreateMessage appends a message to a conversation and touches its updated_at.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.FechaCreacion.IsZero() {
		msg.FechaCreacion = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create message: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO chat_mensajes (id, conversacion_id, rol, contenido, archivo_id, fecha_creacion)
		VALUES (:id, :conversacion_id, :rol, :contenido, :archivo_id, :fecha_creacion)`
	if _, err := tx.NamedExecContext(ctx, insert, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	const touch = `UPDATE conversaciones SET updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, touch, msg.ConversacionID, msg.FechaCreacion); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (r *ChatRepository) ListMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	const query = `SELECT id, conversacion_id, rol, contenido, archivo_id, fecha_creacion FROM chat_mensajes WHERE conversacion_id = $1 ORDER BY fecha_creacion ASC`
	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// CreateUpload stores metadata for a file shared with the assistant.
func (r *ChatRepository) CreateUpload(ctx context.Context, upload *models.ChatUpload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.FechaSubida.IsZero() {
		upload.FechaSubida = time.Now().UTC()
	}
	const query = `INSERT INTO chat_archivos (id, usuario_id, nombre_original, nombre_almacen, mime_type, tamano, fecha_subida)
		VALUES (:id, :usuario_id, :nombre_original, :nombre_almacen, :mime_type, :tamano, :fecha_subida)`
	if _, err := r.db.NamedExecContext(ctx, query, upload); err != nil {
		return fmt.Errorf("create chat upload: %w", err)
	}
	return nil
}
