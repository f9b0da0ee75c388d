package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sgpt-dev/sgpt-api/internal/models"
)

const projectColumns = `id, estudiante_id, tutor_id, titulo, descripcion, planteamiento, solucion_problema, objetivo_general, objetivos_especificos, metodologia, estado, version, fecha_creacion, fecha_envio, fecha_revision, fecha_aprobacion, updated_at`

// ProjectRepository provides database access for degree projects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new instance of ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindByID returns a project by identifier.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM proyectos WHERE id = $1 LIMIT 1`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find project by id: %w", err)
	}
	return &project, nil
}

// List returns projects matching the filter with total count.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error) {
	baseQuery := `FROM proyectos WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.EstudianteID != "" {
		conditions = append(conditions, fmt.Sprintf("estudiante_id = $%d", len(args)+1))
		args = append(args, filter.EstudianteID)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.Estado != nil {
		conditions = append(conditions, fmt.Sprintf("estado = $%d", len(args)+1))
		args = append(args, *filter.Estado)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(titulo) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY fecha_creacion DESC LIMIT %d OFFSET %d", projectColumns, baseQuery, pageSize, offset)

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	return projects, total, nil
}

// Create inserts a new project in estado borrador.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if project.FechaCreacion.IsZero() {
		project.FechaCreacion = now
	}
	project.UpdatedAt = now
	if project.Estado == "" {
		project.Estado = models.StatusDraft
	}
	if project.Version == 0 {
		project.Version = 1
	}

	const query = `INSERT INTO proyectos (id, estudiante_id, tutor_id, titulo, descripcion, planteamiento, solucion_problema, objetivo_general, objetivos_especificos, metodologia, estado, version, fecha_creacion, updated_at)
		VALUES (:id, :estudiante_id, :tutor_id, :titulo, :descripcion, :planteamiento, :solucion_problema, :objetivo_general, :objetivos_especificos, :metodologia, :estado, :version, :fecha_creacion, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// UpdateContent rewrites the content fields and bumps the version counter.
func (r *ProjectRepository) UpdateContent(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	const query = `UPDATE proyectos SET titulo = :titulo, descripcion = :descripcion, planteamiento = :planteamiento, solucion_problema = :solucion_problema, objetivo_general = :objetivo_general, objetivos_especificos = :objetivos_especificos, metodologia = :metodologia, version = version + 1, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, project)
	if err != nil {
		return fmt.Errorf("update project content: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	project.Version++
	return nil
}

// Delete removes a project and its dependent rows (cascaded by the schema).
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM proyectos WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// TransitionParams bundles the rows written atomically during a state change.
type TransitionParams struct {
	ProjectID     string
	From          models.ProjectStatus
	To            models.ProjectStatus
	Observation   *models.Observation
	Notifications []models.Notification
}

// Transition applies a workflow state change. The estado update, the set-once
// workflow timestamps, the optional observation and the notifications commit
// in one transaction. The WHERE estado guard makes concurrent reviewers lose
// cleanly instead of double-writing.
func (r *ProjectRepository) Transition(ctx context.Context, params TransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	const update = `UPDATE proyectos SET
		estado = $2,
		fecha_envio = CASE WHEN $2 = 'enviado' THEN COALESCE(fecha_envio, $3) ELSE fecha_envio END,
		fecha_revision = CASE WHEN $2 = 'en_revision' THEN COALESCE(fecha_revision, $3) ELSE fecha_revision END,
		fecha_aprobacion = CASE WHEN $2 = 'aprobado' THEN COALESCE(fecha_aprobacion, $3) ELSE fecha_aprobacion END,
		updated_at = $3
		WHERE id = $1 AND estado = $4`
	result, err := tx.ExecContext(ctx, update, params.ProjectID, params.To, now, params.From)
	if err != nil {
		return fmt.Errorf("update project estado: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if params.Observation != nil {
		obs := params.Observation
		if obs.ID == "" {
			obs.ID = uuid.NewString()
		}
		if obs.FechaCreacion.IsZero() {
			obs.FechaCreacion = now
		}
		const insertObs = `INSERT INTO observaciones (id, proyecto_id, usuario_id, observacion, estado_proyecto, fecha_creacion)
			VALUES (:id, :proyecto_id, :usuario_id, :observacion, :estado_proyecto, :fecha_creacion)`
		if _, err := tx.NamedExecContext(ctx, insertObs, obs); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}

	for i := range params.Notifications {
		n := &params.Notifications[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.FechaCreacion.IsZero() {
			n.FechaCreacion = now
		}
		const insertNotif = `INSERT INTO notificaciones (id, usuario_id, tipo, titulo, mensaje, proyecto_id, leida, fecha_creacion)
			VALUES (:id, :usuario_id, :tipo, :titulo, :mensaje, :proyecto_id, :leida, :fecha_creacion)`
		if _, err := tx.NamedExecContext(ctx, insertNotif, n); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// AssignTutor sets or replaces the assigned tutor and notifies them.
func (r *ProjectRepository) AssignTutor(ctx context.Context, projectID, tutorID string, notification *models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign tutor: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	const update = `UPDATE proyectos SET tutor_id = $2, updated_at = $3 WHERE id = $1`
	result, err := tx.ExecContext(ctx, update, projectID, tutorID, now)
	if err != nil {
		return fmt.Errorf("assign tutor: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if notification != nil {
		if notification.ID == "" {
			notification.ID = uuid.NewString()
		}
		if notification.FechaCreacion.IsZero() {
			notification.FechaCreacion = now
		}
		const insertNotif = `INSERT INTO notificaciones (id, usuario_id, tipo, titulo, mensaje, proyecto_id, leida, fecha_creacion)
			VALUES (:id, :usuario_id, :tipo, :titulo, :mensaje, :proyecto_id, :leida, :fecha_creacion)`
		if _, err := tx.NamedExecContext(ctx, insertNotif, notification); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assign tutor: %w", err)
	}
	return nil
}

type estadoCount struct {
	Estado models.ProjectStatus `db:"estado"`
	Total  int                  `db:"total"`
}

// Stats aggregates project counts by estado plus the unassigned backlog.
func (r *ProjectRepository) Stats(ctx context.Context) (*models.ProjectStats, error) {
	var counts []estadoCount
	if err := r.db.SelectContext(ctx, &counts, `SELECT estado, COUNT(*) AS total FROM proyectos GROUP BY estado`); err != nil {
		return nil, fmt.Errorf("project stats: %w", err)
	}

	stats := &models.ProjectStats{
		PorEstado:   make(map[models.ProjectStatus]int),
		GeneratedAt: time.Now().UTC(),
	}
	for _, c := range counts {
		stats.PorEstado[c.Estado] = c.Total
		stats.Total += c.Total
	}

	if err := r.db.GetContext(ctx, &stats.SinTutor, `SELECT COUNT(*) FROM proyectos WHERE tutor_id IS NULL`); err != nil {
		return nil, fmt.Errorf("project stats sin tutor: %w", err)
	}

	return stats, nil
}

type monthCount struct {
	Mes   string `db:"mes"`
	Total int    `db:"total"`
}

// Series returns the monthly created/approved chart data.
func (r *ProjectRepository) Series(ctx context.Context, months int) ([]models.ProjectSeriesPoint, error) {
	if months <= 0 {
		months = 12
	}

	var created []monthCount
	createdQuery := fmt.Sprintf(`SELECT to_char(fecha_creacion, 'YYYY-MM') AS mes, COUNT(*) AS total FROM proyectos WHERE fecha_creacion >= NOW() - INTERVAL '%d months' GROUP BY mes`, months)
	if err := r.db.SelectContext(ctx, &created, createdQuery); err != nil {
		return nil, fmt.Errorf("project series created: %w", err)
	}

	var approved []monthCount
	approvedQuery := fmt.Sprintf(`SELECT to_char(fecha_aprobacion, 'YYYY-MM') AS mes, COUNT(*) AS total FROM proyectos WHERE fecha_aprobacion >= NOW() - INTERVAL '%d months' GROUP BY mes`, months)
	if err := r.db.SelectContext(ctx, &approved, approvedQuery); err != nil {
		return nil, fmt.Errorf("project series approved: %w", err)
	}

	byMonth := make(map[string]*models.ProjectSeriesPoint)
	for _, c := range created {
		byMonth[c.Mes] = &models.ProjectSeriesPoint{Mes: c.Mes, Creados: c.Total}
	}
	for _, a := range approved {
		point, ok := byMonth[a.Mes]
		if !ok {
			point = &models.ProjectSeriesPoint{Mes: a.Mes}
			byMonth[a.Mes] = point
		}
		point.Aprobados = a.Total
	}

	series := make([]models.ProjectSeriesPoint, 0, len(byMonth))
	for _, point := range byMonth {
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Mes < series[j].Mes })
	return series, nil
}
