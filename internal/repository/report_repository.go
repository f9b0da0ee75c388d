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

// ReportRepository tracks asynchronous PDF report jobs.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a queued report job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	const query = `INSERT INTO reporte_jobs (id, proyecto_id, status, result_path, result_url, created_by, created_at, finished_at, error_message)
		VALUES (:id, :proyecto_id, :status, :result_path, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID returns a report job by identifier.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, proyecto_id, status, result_path, result_url, created_by, created_at, finished_at, error_message FROM reporte_jobs WHERE id = $1 LIMIT 1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report job: %w", err)
	}
	return &job, nil
}

// MarkProcessing flags a queued job as running.
func (r *ReportRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE reporte_jobs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusProcessing); err != nil {
		return fmt.Errorf("mark report processing: %w", err)
	}
	return nil
}

// MarkFinished records the result location of a completed job.
func (r *ReportRepository) MarkFinished(ctx context.Context, id, resultPath, resultURL string) error {
	now := time.Now().UTC()
	const query = `UPDATE reporte_jobs SET status = $2, result_path = $3, result_url = $4, finished_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFinished, resultPath, resultURL, now); err != nil {
		return fmt.Errorf("mark report finished: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure for the job.
func (r *ReportRepository) MarkFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	const query = `UPDATE reporte_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFailed, message, now); err != nil {
		return fmt.Errorf("mark report failed: %w", err)
	}
	return nil
}
