package service

import (
	"context"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

type auditRepository interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	repo auditRepository
}

// NewAuditService constructs an AuditService instance.
func NewAuditService(repo auditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// List returns audit entries matching the filter. Admin only.
func (s *AuditService) List(ctx context.Context, claims *models.JWTClaims, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	if claims == nil || claims.Rol != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "solo un administrador puede consultar la auditoría")
	}

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	return logs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
