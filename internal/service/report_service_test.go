package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
	"github.com/sgpt-dev/sgpt-api/pkg/export"
	"github.com/sgpt-dev/sgpt-api/pkg/jobs"
)

type mockReportRepo struct {
	jobs map[string]models.ReportJob
}

func (m *mockReportRepo) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]models.ReportJob)
	}
	job.CreatedAt = time.Now()
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if j, ok := m.jobs[id]; ok {
		found := j
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportRepo) MarkProcessing(ctx context.Context, id string) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusProcessing
	m.jobs[id] = j
	return nil
}

func (m *mockReportRepo) MarkFinished(ctx context.Context, id, resultPath, resultURL string) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusFinished
	j.ResultPath = &resultPath
	j.ResultURL = &resultURL
	m.jobs[id] = j
	return nil
}

func (m *mockReportRepo) MarkFailed(ctx context.Context, id, message string) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusFailed
	j.ErrorMessage = &message
	m.jobs[id] = j
	return nil
}

type mockReportStorage struct {
	saved map[string][]byte
}

func (m *mockReportStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockReportStorage) Delete(filename string) error {
	delete(m.saved, filename)
	return nil
}

func (m *mockReportStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func (m *mockReportStorage) Path(filename string) string {
	return "/exports/" + filename
}

type mockReportSigner struct{}

func (m *mockReportSigner) Generate(resourceID, relPath string) (string, time.Time, error) {
	return resourceID + "|" + relPath, time.Now().Add(time.Hour), nil
}

func (m *mockReportSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.SplitN(token, "|", 2)
	if len(parts) != 2 {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	return parts[0], parts[1], time.Now().Add(time.Hour), nil
}

type mockRenderer struct {
	doc export.ProjectDocument
	err error
}

func (m *mockRenderer) Render(doc export.ProjectDocument) ([]byte, error) {
	m.doc = doc
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF-1.4"), nil
}

type mockReportQueue struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockReportQueue) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockReportObserver struct {
	statuses []string
}

func (m *mockReportObserver) ObserveReportJob(status string) {
	m.statuses = append(m.statuses, status)
}

func newReportService(projects *mockProjectRepo, repo *mockReportRepo, storage *mockReportStorage, renderer *mockRenderer) *ReportService {
	users := &mockUserLookup{users: map[string]models.User{
		"student-1": {ID: "student-1", Nombre: "Ana", Apellido: "Pérez"},
		"tutor-1":   {ID: "tutor-1", Nombre: "Luis", Apellido: "Mora"},
	}}
	return NewReportService(repo, projects, users, &mockObservationRepo{}, storage, &mockReportSigner{}, renderer, zap.NewNop(), ReportConfig{
		RetentionTTL: time.Hour,
		DownloadPath: "/api/reportes/descargar",
	})
}

func TestReportServiceEnqueue(t *testing.T) {
	projects := seedProject(models.StatusApproved, "tutor-1")
	repo := &mockReportRepo{}
	queue := &mockReportQueue{}
	svc := newReportService(projects, repo, &mockReportStorage{}, &mockRenderer{})
	svc.SetQueue(queue)

	job, err := svc.Enqueue(context.Background(), studentClaims("student-1"), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.Equal(t, "p1", job.ProyectoID)
	assert.Equal(t, "student-1", job.CreatedBy)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
	assert.Equal(t, "p1", queue.enqueued[0].Payload)
}

func TestReportServiceEnqueueForbidden(t *testing.T) {
	svc := newReportService(seedProject(models.StatusApproved, "tutor-1"), &mockReportRepo{}, &mockReportStorage{}, &mockRenderer{})
	svc.SetQueue(&mockReportQueue{})

	_, err := svc.Enqueue(context.Background(), studentClaims("student-2"), "p1")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)
}

func TestReportServiceEnqueueFailureMarksJob(t *testing.T) {
	repo := &mockReportRepo{}
	svc := newReportService(seedProject(models.StatusApproved, ""), repo, &mockReportStorage{}, &mockRenderer{})
	svc.SetQueue(&mockReportQueue{err: fmt.Errorf("queue stopped")})

	_, err := svc.Enqueue(context.Background(), studentClaims("student-1"), "p1")
	require.Error(t, err)

	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceProcess(t *testing.T) {
	projects := seedProject(models.StatusApproved, "tutor-1")
	repo := &mockReportRepo{jobs: map[string]models.ReportJob{
		"job-1": {ID: "job-1", ProyectoID: "p1", Status: models.ReportStatusQueued, CreatedBy: "student-1"},
	}}
	storage := &mockReportStorage{}
	renderer := &mockRenderer{}
	observer := &mockReportObserver{}
	svc := newReportService(projects, repo, storage, renderer)
	svc.SetMetrics(observer)

	err := svc.Process(context.Background(), jobs.Job{ID: "job-1", Type: "project_report", Payload: "p1"})
	require.NoError(t, err)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	require.NotNil(t, job.ResultPath)
	assert.True(t, strings.HasSuffix(*job.ResultPath, "job-1.pdf"))
	require.NotNil(t, job.ResultURL)
	assert.Contains(t, *job.ResultURL, "/api/reportes/descargar?token=")

	assert.Equal(t, "Plataforma de riego inteligente", renderer.doc.Titulo)
	assert.Equal(t, "Ana Pérez", renderer.doc.Estudiante)
	assert.Equal(t, "Luis Mora", renderer.doc.Tutor)
	assert.Len(t, storage.saved, 1)
	assert.Equal(t, []string{string(models.ReportStatusFinished)}, observer.statuses)
}

func TestReportServiceProcessRenderFailure(t *testing.T) {
	repo := &mockReportRepo{jobs: map[string]models.ReportJob{
		"job-1": {ID: "job-1", ProyectoID: "p1", Status: models.ReportStatusQueued},
	}}
	renderer := &mockRenderer{err: fmt.Errorf("font missing")}
	observer := &mockReportObserver{}
	svc := newReportService(seedProject(models.StatusApproved, ""), repo, &mockReportStorage{}, renderer)
	svc.SetMetrics(observer)

	err := svc.Process(context.Background(), jobs.Job{ID: "job-1", Payload: "p1"})
	require.Error(t, err)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, []string{string(models.ReportStatusFailed)}, observer.statuses)
}

func TestReportServiceStatusAccess(t *testing.T) {
	repo := &mockReportRepo{jobs: map[string]models.ReportJob{
		"job-1": {ID: "job-1", ProyectoID: "p1", Status: models.ReportStatusQueued, CreatedBy: "student-1"},
	}}
	svc := newReportService(seedProject(models.StatusApproved, ""), repo, &mockReportStorage{}, &mockRenderer{})

	_, err := svc.Status(context.Background(), studentClaims("student-2"), "job-1")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)

	job, err := svc.Status(context.Background(), studentClaims("student-1"), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)

	_, err = svc.Status(context.Background(), adminClaims("admin-1"), "job-1")
	require.NoError(t, err)
}

func TestReportServiceOpenByToken(t *testing.T) {
	svc := newReportService(seedProject(models.StatusApproved, ""), &mockReportRepo{}, &mockReportStorage{}, &mockRenderer{})

	relPath, err := svc.OpenByToken("job-1|2026-08/job-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "2026-08/job-1.pdf", relPath)
	assert.Equal(t, "/exports/2026-08/job-1.pdf", svc.AbsolutePath(relPath))

	_, err = svc.OpenByToken("garbage")
	require.Error(t, err)
}
