package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

type mockStreamer struct {
	deltas   []string
	err      error
	received []AssistantMessage
}

func (m *mockStreamer) Stream(ctx context.Context, messages []AssistantMessage, emit func(delta string) error) (string, error) {
	m.received = messages
	var full string
	for _, delta := range m.deltas {
		full += delta
		if err := emit(delta); err != nil {
			return full, err
		}
	}
	return full, m.err
}

func TestCanvasServiceGenerateSection(t *testing.T) {
	repo := seedProject(models.StatusDraft, "")
	p := repo.projects["p1"]
	p.Descripcion = "Riego automatizado con sensores de humedad"
	p.ObjetivoGeneral = "Reducir el consumo de agua"
	repo.projects["p1"] = p

	streamer := &mockStreamer{deltas: []string{"El problema ", "central es..."}}
	svc := NewCanvasService(repo, streamer, zap.NewNop())

	var collected []string
	text, err := svc.GenerateSection(context.Background(), studentClaims("student-1"), "p1", CanvasSectionPlanteamiento, func(delta string) error {
		collected = append(collected, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "El problema central es...", text)
	assert.Equal(t, []string{"El problema ", "central es..."}, collected)

	require.Len(t, streamer.received, 2)
	assert.Equal(t, "system", streamer.received[0].Role)
	assert.Contains(t, streamer.received[1].Content, "Plataforma de riego inteligente")
	assert.Contains(t, streamer.received[1].Content, "Reducir el consumo de agua")
	assert.NotContains(t, streamer.received[1].Content, "Metodología actual")
}

func TestCanvasServiceUnknownSection(t *testing.T) {
	svc := NewCanvasService(seedProject(models.StatusDraft, ""), &mockStreamer{}, zap.NewNop())

	_, err := svc.GenerateSection(context.Background(), studentClaims("student-1"), "p1", "anexos", func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestCanvasServiceSummarySection(t *testing.T) {
	streamer := &mockStreamer{deltas: []string{"El proyecto propone ", "un sistema de riego."}}
	svc := NewCanvasService(seedProject(models.StatusDraft, ""), streamer, zap.NewNop())

	text, err := svc.GenerateSection(context.Background(), studentClaims("student-1"), "p1", CanvasSectionResumen, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "El proyecto propone un sistema de riego.", text)
	assert.Contains(t, streamer.received[0].Content, "resumen ejecutivo")
}

func TestCanvasServiceAccessControl(t *testing.T) {
	repo := seedProject(models.StatusDraft, "tutor-1")
	svc := NewCanvasService(repo, &mockStreamer{deltas: []string{"ok"}}, zap.NewNop())

	_, err := svc.GenerateSection(context.Background(), studentClaims("student-2"), "p1", CanvasSectionObjetivos, func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)

	_, err = svc.GenerateSection(context.Background(), tutorClaims("tutor-1"), "p1", CanvasSectionObjetivos, func(string) error { return nil })
	require.NoError(t, err)
}

func TestValidSection(t *testing.T) {
	assert.True(t, ValidSection(CanvasSectionMetodologia))
	assert.True(t, ValidSection(CanvasSectionSolucion))
	assert.False(t, ValidSection("introduccion"))
}
