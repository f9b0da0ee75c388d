package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

type notificationRepository interface {
	ListByUser(ctx context.Context, userID string, onlyUnread bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) error
}

// NotificationService surfaces in-app notifications to their owner.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// List returns the caller's notifications, optionally only unread ones.
func (s *NotificationService) List(ctx context.Context, claims *models.JWTClaims, onlyUnread bool) ([]models.Notification, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	notifications, err := s.repo.ListByUser(ctx, claims.UserID, onlyUnread)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead marks one notification as read. Ownership is enforced by the
// repository's WHERE clause, a miss reads as not found.
func (s *NotificationService) MarkRead(ctx context.Context, claims *models.JWTClaims, id string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	updated, err := s.repo.MarkRead(ctx, id, claims.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "notificación no encontrada")
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.MarkAllRead(ctx, claims.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications")
	}
	return nil
}
