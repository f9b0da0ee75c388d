package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sgpt-dev/sgpt-api/internal/models"
)

// NotificationRepository provides database access for in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.FechaCreacion.IsZero() {
		n.FechaCreacion = time.Now().UTC()
	}
	const query = `INSERT INTO notificaciones (id, usuario_id, tipo, titulo, mensaje, proyecto_id, leida, fecha_creacion)
		VALUES (:id, :usuario_id, :tipo, :titulo, :mensaje, :proyecto_id, :leida, :fecha_creacion)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, onlyUnread bool) ([]models.Notification, error) {
	query := `SELECT id, usuario_id, tipo, titulo, mensaje, proyecto_id, leida, fecha_creacion FROM notificaciones WHERE usuario_id = $1`
	if onlyUnread {
		query += ` AND leida = FALSE`
	}
	query += ` ORDER BY fecha_creacion DESC LIMIT 100`

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a single notification as read, scoped to its owner.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	const query = `UPDATE notificaciones SET leida = TRUE WHERE id = $1 AND usuario_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected > 0, nil
}

// MarkAllRead flags every unread notification of a user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	const query = `UPDATE notificaciones SET leida = TRUE WHERE usuario_id = $1 AND leida = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
