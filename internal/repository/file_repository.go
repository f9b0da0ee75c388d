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

// FileRepository provides database access for project attachments.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new instance of FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create stores file metadata for an uploaded document.
func (r *FileRepository) Create(ctx context.Context, archivo *models.Archivo) error {
	if archivo.ID == "" {
		archivo.ID = uuid.NewString()
	}
	if archivo.FechaSubida.IsZero() {
		archivo.FechaSubida = time.Now().UTC()
	}
	const query = `INSERT INTO archivos (id, proyecto_id, nombre_original, nombre_almacen, mime_type, tamano, subido_por, fecha_subida)
		VALUES (:id, :proyecto_id, :nombre_original, :nombre_almacen, :mime_type, :tamano, :subido_por, :fecha_subida)`
	if _, err := r.db.NamedExecContext(ctx, query, archivo); err != nil {
		return fmt.Errorf("create archivo: %w", err)
	}
	return nil
}

// FindByID returns file metadata by identifier.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*models.Archivo, error) {
	const query = `SELECT id, proyecto_id, nombre_original, nombre_almacen, mime_type, tamano, subido_por, fecha_subida FROM archivos WHERE id = $1 LIMIT 1`
	var archivo models.Archivo
	if err := r.db.GetContext(ctx, &archivo, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find archivo by id: %w", err)
	}
	return &archivo, nil
}

// ListByProject returns attachments of a project ordered by upload time.
func (r *FileRepository) ListByProject(ctx context.Context, projectID string) ([]models.Archivo, error) {
	const query = `SELECT id, proyecto_id, nombre_original, nombre_almacen, mime_type, tamano, subido_por, fecha_subida FROM archivos WHERE proyecto_id = $1 ORDER BY fecha_subida DESC`
	var archivos []models.Archivo
	if err := r.db.SelectContext(ctx, &archivos, query, projectID); err != nil {
		return nil, fmt.Errorf("list archivos: %w", err)
	}
	return archivos, nil
}

// Delete removes file metadata.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM archivos WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete archivo: %w", err)
	}
	return nil
}
