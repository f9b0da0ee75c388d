package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

// Canvas sections the generator knows how to draft.
const (
	CanvasSectionPlanteamiento = "planteamiento"
	CanvasSectionSolucion      = "solucion_problema"
	CanvasSectionObjetivos     = "objetivos"
	CanvasSectionMetodologia   = "metodologia"
	CanvasSectionResumen       = "resumen"
)

var canvasPrompts = map[string]string{
	CanvasSectionPlanteamiento: "Redacta el planteamiento del problema para el proyecto de titulación descrito. Usa un tono académico formal en español.",
	CanvasSectionSolucion:      "Redacta la propuesta de solución al problema para el proyecto de titulación descrito. Usa un tono académico formal en español.",
	CanvasSectionObjetivos:     "Redacta el objetivo general y entre tres y cinco objetivos específicos para el proyecto de titulación descrito. Usa verbos en infinitivo.",
	CanvasSectionMetodologia:   "Redacta la sección de metodología para el proyecto de titulación descrito, indicando enfoque, tipo de investigación y técnicas de recolección.",
	CanvasSectionResumen:       "Redacta el resumen ejecutivo del proyecto de titulación descrito, en un máximo de trescientas palabras y en tono académico formal en español.",
}

type assistantStreamer interface {
	Stream(ctx context.Context, messages []AssistantMessage, emit func(delta string) error) (string, error)
}

// CanvasService drafts thesis sections with the assistant, streaming the
// output so the editor can render tokens as they arrive.
type CanvasService struct {
	projects  fileProjectLookup
	assistant assistantStreamer
	logger    *zap.Logger
}

// NewCanvasService constructs a CanvasService instance.
func NewCanvasService(projects fileProjectLookup, assistant assistantStreamer, logger *zap.Logger) *CanvasService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CanvasService{projects: projects, assistant: assistant, logger: logger}
}

// ValidSection reports whether the generator supports the section.
func ValidSection(section string) bool {
	_, ok := canvasPrompts[section]
	return ok
}

// GenerateSection streams a drafted section for the project, invoking emit for
// each delta. The accumulated text is returned when the stream completes.
func (s *CanvasService) GenerateSection(ctx context.Context, claims *models.JWTClaims, projectID, section string, emit func(delta string) error) (string, error) {
	prompt, ok := canvasPrompts[section]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sección desconocida: %s", section))
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "proyecto no encontrado")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if claims == nil || (claims.Rol != models.RoleAdmin && !project.IsOwner(claims) && !project.IsAssignedTutor(claims)) {
		return "", appErrors.Clone(appErrors.ErrForbidden, "no tiene acceso a este proyecto")
	}

	messages := []AssistantMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: projectContext(project)},
	}

	text, err := s.assistant.Stream(ctx, messages, emit)
	if err != nil {
		s.logger.Warn("canvas generation failed",
			zap.String("proyecto_id", projectID),
			zap.String("seccion", section),
			zap.Error(err))
		return text, err
	}
	return text, nil
}

// projectContext flattens the proposal content into the user prompt. Empty
// sections are omitted so the model works from what the student has written.
func projectContext(p *models.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Título: %s\n", p.Titulo)
	fmt.Fprintf(&b, "Descripción: %s\n", p.Descripcion)
	if p.Planteamiento != "" {
		fmt.Fprintf(&b, "Planteamiento actual: %s\n", p.Planteamiento)
	}
	if p.SolucionProblema != "" {
		fmt.Fprintf(&b, "Solución propuesta: %s\n", p.SolucionProblema)
	}
	if p.ObjetivoGeneral != "" {
		fmt.Fprintf(&b, "Objetivo general: %s\n", p.ObjetivoGeneral)
	}
	if p.ObjetivosEspecifico != "" {
		fmt.Fprintf(&b, "Objetivos específicos: %s\n", p.ObjetivosEspecifico)
	}
	if p.Metodologia != "" {
		fmt.Fprintf(&b, "Metodología actual: %s\n", p.Metodologia)
	}
	return b.String()
}
