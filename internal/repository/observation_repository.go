package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sgpt-dev/sgpt-api/internal/models"
)

// ObservationRepository provides database access for review observations.
type ObservationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository creates a new instance of ObservationRepository.
func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// ListByProject returns the observations of a project ordered by creation time.
func (r *ObservationRepository) ListByProject(ctx context.Context, projectID string) ([]models.Observation, error) {
	const query = `SELECT o.id, o.proyecto_id, o.usuario_id, o.observacion, o.estado_proyecto, o.fecha_creacion,
		u.nombre || ' ' || u.apellido AS autor_nombre
		FROM observaciones o
		JOIN usuarios u ON u.id = o.usuario_id
		WHERE o.proyecto_id = $1
		ORDER BY o.fecha_creacion ASC`
	var observations []models.Observation
	if err := r.db.SelectContext(ctx, &observations, query, projectID); err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	return observations, nil
}

// Create appends an observation. Observations are never updated or deleted.
func (r *ObservationRepository) Create(ctx context.Context, obs *models.Observation) error {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.FechaCreacion.IsZero() {
		obs.FechaCreacion = time.Now().UTC()
	}
	const query = `INSERT INTO observaciones (id, proyecto_id, usuario_id, observacion, estado_proyecto, fecha_creacion)
		VALUES (:id, :proyecto_id, :usuario_id, :observacion, :estado_proyecto, :fecha_creacion)`
	if _, err := r.db.NamedExecContext(ctx, query, obs); err != nil {
		return fmt.Errorf("create observation: %w", err)
	}
	return nil
}
