package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
	"github.com/sgpt-dev/sgpt-api/pkg/export"
	"github.com/sgpt-dev/sgpt-api/pkg/jobs"
)

const reportJobType = "project_report"

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultPath, resultURL string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type reportUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type reportObservationLookup interface {
	ListByProject(ctx context.Context, projectID string) ([]models.Observation, error)
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
	Path(filename string) string
}

type reportQueue interface {
	Enqueue(job jobs.Job) error
}

type pdfRenderer interface {
	Render(doc export.ProjectDocument) ([]byte, error)
}

type reportObserver interface {
	ObserveReportJob(status string)
}

// ReportConfig tunes report generation and retention.
type ReportConfig struct {
	RetentionTTL time.Duration
	DownloadPath string
}

// ReportService generates project summary PDFs in the background. The enqueue
// endpoint returns the job ID immediately; clients poll until FINISHED and
// follow the signed result URL.
type ReportService struct {
	repo         reportRepository
	projects     fileProjectLookup
	users        reportUserLookup
	observations reportObservationLookup
	storage      reportStorage
	signer       downloadSigner
	renderer     pdfRenderer
	queue        reportQueue
	logger       *zap.Logger
	config       ReportConfig
	metrics      reportObserver
}

// SetMetrics attaches the optional job outcome counter.
func (s *ReportService) SetMetrics(observer reportObserver) {
	s.metrics = observer
}

func (s *ReportService) observeJob(status models.ReportStatus) {
	if s.metrics != nil {
		s.metrics.ObserveReportJob(string(status))
	}
}

// NewReportService constructs a ReportService instance. SetQueue must be
// called before Enqueue is used.
func NewReportService(repo reportRepository, projects fileProjectLookup, users reportUserLookup, observations reportObservationLookup, storage reportStorage, signer downloadSigner, renderer pdfRenderer, logger *zap.Logger, config ReportConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RetentionTTL <= 0 {
		config.RetentionTTL = 24 * time.Hour
	}
	if config.DownloadPath == "" {
		config.DownloadPath = "/api/reportes/descargar"
	}
	return &ReportService{
		repo:         repo,
		projects:     projects,
		users:        users,
		observations: observations,
		storage:      storage,
		signer:       signer,
		renderer:     renderer,
		logger:       logger,
		config:       config,
	}
}

// SetQueue wires the background queue once it is constructed with Process as
// its handler.
func (s *ReportService) SetQueue(queue reportQueue) {
	s.queue = queue
}

// Enqueue registers a report job for the project and schedules it.
func (s *ReportService) Enqueue(ctx context.Context, claims *models.JWTClaims, projectID string) (*models.ReportJob, error) {
	project, err := s.viewableProject(ctx, claims, projectID)
	if err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "la generación de reportes está deshabilitada")
	}

	job := &models.ReportJob{
		ID:         uuid.NewString(),
		ProyectoID: project.ID,
		Status:     models.ReportStatusQueued,
		CreatedBy:  claims.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: reportJobType, Payload: job.ProyectoID}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "no se pudo encolar el trabajo"); markErr != nil {
			s.logger.Warn("failed to mark unqueued report job", zap.String("job", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	return job, nil
}

// Status returns the job state. Only the creator and admins may poll it.
func (s *ReportService) Status(ctx context.Context, claims *models.JWTClaims, jobID string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reporte no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if claims == nil || (claims.Rol != models.RoleAdmin && job.CreatedBy != claims.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no tiene acceso a este reporte")
	}
	return job, nil
}

// Process is the queue handler. It renders the PDF, stores it and records the
// signed download URL on the job row.
func (s *ReportService) Process(ctx context.Context, job jobs.Job) error {
	projectID, ok := job.Payload.(string)
	if !ok || projectID == "" {
		return fmt.Errorf("report job %s has no project payload", job.ID)
	}

	if err := s.repo.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}

	data, err := s.render(ctx, projectID)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.Warn("failed to mark failed report job", zap.String("job", job.ID), zap.Error(markErr))
		}
		s.observeJob(models.ReportStatusFailed)
		return err
	}

	relPath := fmt.Sprintf("%s/%s.pdf", time.Now().UTC().Format("2006-01"), job.ID)
	if _, err := s.storage.Save(relPath, data); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "no se pudo guardar el PDF"); markErr != nil {
			s.logger.Warn("failed to mark failed report job", zap.String("job", job.ID), zap.Error(markErr))
		}
		s.observeJob(models.ReportStatusFailed)
		return err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "no se pudo firmar la URL"); markErr != nil {
			s.logger.Warn("failed to mark failed report job", zap.String("job", job.ID), zap.Error(markErr))
		}
		s.observeJob(models.ReportStatusFailed)
		return err
	}
	resultURL := fmt.Sprintf("%s?token=%s", s.config.DownloadPath, token)

	if err := s.repo.MarkFinished(ctx, job.ID, relPath, resultURL); err != nil {
		return err
	}
	s.observeJob(models.ReportStatusFinished)
	return nil
}

// OpenByToken validates a signed report token and returns the PDF path.
func (s *ReportService) OpenByToken(token string) (string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "token de descarga inválido")
	}
	if jobID == "" || relPath == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "token de descarga inválido")
	}
	return relPath, nil
}

// AbsolutePath resolves a stored report path against the storage root.
func (s *ReportService) AbsolutePath(relPath string) string {
	return s.storage.Path(relPath)
}

// Cleanup removes expired PDFs from disk. Intended to run on a ticker.
func (s *ReportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.config.RetentionTTL)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(deleted)))
	}
}

func (s *ReportService) render(ctx context.Context, projectID string) ([]byte, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project for report: %w", err)
	}

	doc := export.ProjectDocument{
		Titulo:        project.Titulo,
		Estado:        string(project.Estado),
		Version:       project.Version,
		FechaCreacion: project.FechaCreacion,
		Secciones: []export.Section{
			{Titulo: "Descripción", Contenido: project.Descripcion},
			{Titulo: "Planteamiento del problema", Contenido: project.Planteamiento},
			{Titulo: "Solución propuesta", Contenido: project.SolucionProblema},
			{Titulo: "Objetivo general", Contenido: project.ObjetivoGeneral},
			{Titulo: "Objetivos específicos", Contenido: project.ObjetivosEspecifico},
			{Titulo: "Metodología", Contenido: project.Metodologia},
		},
	}

	if student, err := s.users.FindByID(ctx, project.EstudianteID); err == nil {
		doc.Estudiante = student.FullName()
	}
	if project.TutorID != nil {
		if tutor, err := s.users.FindByID(ctx, *project.TutorID); err == nil {
			doc.Tutor = tutor.FullName()
		}
	}

	observations, err := s.observations.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Warn("report without observations", zap.String("proyecto_id", projectID), zap.Error(err))
	}
	for _, obs := range observations {
		doc.Observaciones = append(doc.Observaciones, export.ObservationLine{
			Autor:  obs.AutorNombre,
			Estado: string(obs.EstadoProyecto),
			Texto:  obs.Observacion,
			Fecha:  obs.FechaCreacion,
		})
	}

	return s.renderer.Render(doc)
}

func (s *ReportService) viewableProject(ctx context.Context, claims *models.JWTClaims, projectID string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proyecto no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Rol != models.RoleAdmin && !project.IsOwner(claims) && !project.IsAssignedTutor(claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no tiene acceso a este proyecto")
	}
	return project, nil
}
