package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/dto"
	"github.com/sgpt-dev/sgpt-api/internal/models"
	"github.com/sgpt-dev/sgpt-api/internal/repository"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

const (
	statsCacheKey     = "stats:proyectos"
	seriesCacheKey    = "stats:proyectos:serie"
	statsCachePattern = "stats:proyectos*"
)

type projectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error)
	Create(ctx context.Context, project *models.Project) error
	UpdateContent(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	Transition(ctx context.Context, params repository.TransitionParams) error
	AssignTutor(ctx context.Context, projectID, tutorID string, notification *models.Notification) error
	Stats(ctx context.Context) (*models.ProjectStats, error)
	Series(ctx context.Context, months int) ([]models.ProjectSeriesPoint, error)
}

type observationRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]models.Observation, error)
	Create(ctx context.Context, obs *models.Observation) error
}

type projectUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type transitionObserver interface {
	ObserveTransition(from, to string)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ProjectService implements the degree-project review workflow.
type ProjectService struct {
	repo      projectRepository
	obsRepo   observationRepository
	users     projectUserLookup
	cache     statsCache
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	statsTTL  time.Duration
	metrics   transitionObserver
}

// SetMetrics attaches the optional transition counter.
func (s *ProjectService) SetMetrics(observer transitionObserver) {
	s.metrics = observer
}

// NewProjectService constructs a ProjectService instance.
func NewProjectService(repo projectRepository, obsRepo observationRepository, users projectUserLookup, cache statsCache, audit auditLogger, validate *validator.Validate, logger *zap.Logger, statsTTL time.Duration) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if statsTTL <= 0 {
		statsTTL = 5 * time.Minute
	}
	return &ProjectService{
		repo:      repo,
		obsRepo:   obsRepo,
		users:     users,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		statsTTL:  statsTTL,
	}
}

// Create registers a new proposal in estado borrador owned by the caller.
func (s *ProjectService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateProjectRequest, meta models.RequestMeta) (*models.Project, error) {
	if claims == nil || claims.Rol != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "solo los estudiantes pueden registrar proyectos")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "datos del proyecto inválidos")
	}

	project := &models.Project{
		EstudianteID:        claims.UserID,
		Titulo:              req.Titulo,
		Descripcion:         req.Descripcion,
		Planteamiento:       req.Planteamiento,
		SolucionProblema:    req.SolucionProblema,
		ObjetivoGeneral:     req.ObjetivoGeneral,
		ObjetivosEspecifico: req.ObjetivosEspecifico,
		Metodologia:         req.Metodologia,
		Estado:              models.StatusDraft,
		Version:             1,
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}

	s.invalidateStats(ctx)

	newPayload, _ := json.Marshal(map[string]interface{}{"titulo": project.Titulo, "estado": project.Estado})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionProjectCreate,
		Resource:   "proyectos",
		ResourceID: &project.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return project, nil
}

// Get returns a project enforcing visibility rules.
func (s *ProjectService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Project, error) {
	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(project, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no tiene acceso a este proyecto")
	}
	return project, nil
}

// List returns projects scoped to the caller's role. Students see their own
// proposals, tutors see their assigned reviews, admins see everything.
func (s *ProjectService) List(ctx context.Context, claims *models.JWTClaims, query dto.ProjectListQuery) ([]models.Project, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}

	filter := models.ProjectFilter{
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Estado != "" {
		estado := models.ProjectStatus(query.Estado)
		if !estado.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("estado desconocido: %s", query.Estado))
		}
		filter.Estado = &estado
	}

	switch claims.Rol {
	case models.RoleStudent:
		filter.EstudianteID = claims.UserID
	case models.RoleTutor:
		filter.TutorID = claims.UserID
	case models.RoleAdmin:
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	projects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return projects, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update rewrites the content fields. Editing is restricted to the owning
// student while the project is in borrador, corregir or rechazado; the
// version counter increments on every successful rewrite.
func (s *ProjectService) Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateProjectRequest, meta models.RequestMeta) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "datos del proyecto inválidos")
	}

	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.CanEdit(claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("el proyecto no es editable en estado %s", project.Estado))
	}

	project.Titulo = req.Titulo
	project.Descripcion = req.Descripcion
	project.Planteamiento = req.Planteamiento
	project.SolucionProblema = req.SolucionProblema
	project.ObjetivoGeneral = req.ObjetivoGeneral
	project.ObjetivosEspecifico = req.ObjetivosEspecifico
	project.Metodologia = req.Metodologia

	if err := s.repo.UpdateContent(ctx, project); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proyecto no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"titulo": project.Titulo, "version": project.Version})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionProjectUpdate,
		Resource:   "proyectos",
		ResourceID: &project.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return project, nil
}

// Delete removes a project. Admins may delete any project, the owning student
// only while it is still a borrador.
func (s *ProjectService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.RequestMeta) error {
	project, err := s.loadProject(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case claims != nil && claims.Rol == models.RoleAdmin:
	case project.IsOwner(claims) && project.Estado == models.StatusDraft:
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "no puede eliminar este proyecto")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete project")
	}

	s.invalidateStats(ctx)

	oldPayload, _ := json.Marshal(map[string]interface{}{"titulo": project.Titulo, "estado": project.Estado})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionProjectDelete,
		Resource:   "proyectos",
		ResourceID: &id,
		OldValues:  oldPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return nil
}

// ChangeStatus drives the review workflow. The transition table decides which
// edges exist and which role triggers them; observation text is appended
// atomically with the estado write when the rule says so.
func (s *ProjectService) ChangeStatus(ctx context.Context, claims *models.JWTClaims, id string, req dto.ChangeStatusRequest, meta models.RequestMeta) (*models.Project, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !req.Estado.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("estado desconocido: %s", req.Estado))
	}

	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}

	rule, ok := models.LookupTransition(project.Estado, req.Estado)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("no se puede pasar de %s a %s", project.Estado, req.Estado))
	}

	switch rule.Actor {
	case models.RoleStudent:
		if !project.IsOwner(claims) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "solo el estudiante dueño puede realizar esta transición")
		}
	case models.RoleTutor:
		if !project.IsAssignedTutor(claims) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "solo el tutor asignado puede realizar esta transición")
		}
	default:
		return nil, appErrors.ErrForbidden
	}

	observationText := strings.TrimSpace(req.Observacion)
	if rule.RequiresObservation && observationText == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "la observación es obligatoria para solicitar correcciones")
	}

	params := repository.TransitionParams{
		ProjectID: project.ID,
		From:      project.Estado,
		To:        req.Estado,
	}

	if rule.AppendsObservation && observationText != "" {
		params.Observation = &models.Observation{
			ProyectoID:     project.ID,
			UsuarioID:      claims.UserID,
			Observacion:    observationText,
			EstadoProyecto: req.Estado,
		}
	}

	params.Notifications = s.transitionNotifications(project, req.Estado, claims)

	if err := s.repo.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "el proyecto cambió de estado, recargue e intente de nuevo")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	s.invalidateStats(ctx)
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(project.Estado), string(req.Estado))
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"estado": project.Estado})
	newPayload, _ := json.Marshal(map[string]interface{}{"estado": req.Estado, "observacion": observationText != ""})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionTransition,
		Resource:   "proyectos",
		ResourceID: &project.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return s.loadProject(ctx, id)
}

// AssignTutor sets the reviewing tutor. Admin only; the target must be an
// active user with rol tutor.
func (s *ProjectService) AssignTutor(ctx context.Context, claims *models.JWTClaims, id string, req dto.AssignTutorRequest, meta models.RequestMeta) (*models.Project, error) {
	if claims == nil || claims.Rol != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "solo un administrador puede asignar tutores")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "tutor_id inválido")
	}

	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}

	tutor, err := s.users.FindByID(ctx, req.TutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	if tutor.Rol != models.RoleTutor || !tutor.Activo {
		return nil, appErrors.Clone(appErrors.ErrValidation, "el usuario seleccionado no es un tutor activo")
	}

	notification := &models.Notification{
		UsuarioID:  tutor.ID,
		Tipo:       models.NotificationTutorAssigned,
		Titulo:     "Nuevo proyecto asignado",
		Mensaje:    fmt.Sprintf("Se le asignó el proyecto %q para revisión", project.Titulo),
		ProyectoID: &project.ID,
	}

	if err := s.repo.AssignTutor(ctx, project.ID, tutor.ID, notification); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proyecto no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign tutor")
	}

	s.invalidateStats(ctx)

	newPayload, _ := json.Marshal(map[string]interface{}{"tutor_id": tutor.ID})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionAssignTutor,
		Resource:   "proyectos",
		ResourceID: &project.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return s.loadProject(ctx, id)
}

// Observations lists the full review history of a project.
func (s *ProjectService) Observations(ctx context.Context, claims *models.JWTClaims, id string) ([]models.Observation, error) {
	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(project, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no tiene acceso a este proyecto")
	}
	observations, err := s.obsRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list observations")
	}
	return observations, nil
}

// AddObservation appends a standalone review note without changing estado.
// Only the assigned tutor or an administrator may write one.
func (s *ProjectService) AddObservation(ctx context.Context, claims *models.JWTClaims, id string, req dto.CreateObservationRequest) (*models.Observation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "observación inválida")
	}

	project, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims == nil || (claims.Rol != models.RoleAdmin && !project.IsAssignedTutor(claims)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "solo el tutor asignado o un administrador puede agregar observaciones")
	}

	obs := &models.Observation{
		ProyectoID:     project.ID,
		UsuarioID:      claims.UserID,
		Observacion:    strings.TrimSpace(req.Observacion),
		EstadoProyecto: project.Estado,
	}
	if err := s.obsRepo.Create(ctx, obs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create observation")
	}
	obs.AutorNombre = claims.FullName
	return obs, nil
}

// Stats returns the dashboard aggregates, served from Redis when fresh.
func (s *ProjectService) Stats(ctx context.Context) (*models.ProjectStats, error) {
	var cached models.ProjectStats
	if s.cache != nil {
		if err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute stats")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.statsTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// Series returns the monthly created/approved chart, cached like Stats.
func (s *ProjectService) Series(ctx context.Context, months int) ([]models.ProjectSeriesPoint, error) {
	if months <= 0 || months > 36 {
		months = 12
	}
	key := fmt.Sprintf("%s:%d", seriesCacheKey, months)

	var cached []models.ProjectSeriesPoint
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("series cache read failed", zap.Error(err))
		}
	}

	series, err := s.repo.Series(ctx, months)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute series")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, series, s.statsTTL); err != nil {
			s.logger.Warn("series cache write failed", zap.Error(err))
		}
	}
	return series, nil
}

func (s *ProjectService) loadProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proyecto no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

func (s *ProjectService) canView(p *models.Project, claims *models.JWTClaims) bool {
	if claims == nil {
		return false
	}
	if claims.Rol == models.RoleAdmin {
		return true
	}
	return p.IsOwner(claims) || p.IsAssignedTutor(claims)
}

// transitionNotifications notifies the counterpart of the acting user. Student
// submissions alert the assigned tutor, tutor verdicts alert the student.
func (s *ProjectService) transitionNotifications(project *models.Project, to models.ProjectStatus, claims *models.JWTClaims) []models.Notification {
	switch to {
	case models.StatusSubmitted:
		if project.TutorID == nil {
			return nil
		}
		return []models.Notification{{
			UsuarioID:  *project.TutorID,
			Tipo:       models.NotificationProjectSubmitted,
			Titulo:     "Proyecto enviado a revisión",
			Mensaje:    fmt.Sprintf("%s envió el proyecto %q", claims.FullName, project.Titulo),
			ProyectoID: &project.ID,
		}}
	case models.StatusInReview, models.StatusApproved, models.StatusRejected, models.StatusCorrections:
		var mensaje string
		switch to {
		case models.StatusInReview:
			mensaje = fmt.Sprintf("Su proyecto %q está en revisión", project.Titulo)
		case models.StatusApproved:
			mensaje = fmt.Sprintf("Su proyecto %q fue aprobado", project.Titulo)
		case models.StatusRejected:
			mensaje = fmt.Sprintf("Su proyecto %q fue rechazado", project.Titulo)
		default:
			mensaje = fmt.Sprintf("Su proyecto %q tiene correcciones solicitadas", project.Titulo)
		}
		return []models.Notification{{
			UsuarioID:  project.EstudianteID,
			Tipo:       models.NotificationProjectReviewed,
			Titulo:     "Actualización de revisión",
			Mensaje:    mensaje,
			ProyectoID: &project.ID,
		}}
	}
	return nil
}

func (s *ProjectService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, statsCachePattern); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

func (s *ProjectService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
