package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
	"github.com/sgpt-dev/sgpt-api/pkg/storage"
)

type mockFileRepo struct {
	files   map[string]models.Archivo
	deleted []string
	err     error
}

func (m *mockFileRepo) Create(ctx context.Context, archivo *models.Archivo) error {
	if m.err != nil {
		return m.err
	}
	if m.files == nil {
		m.files = make(map[string]models.Archivo)
	}
	if archivo.ID == "" {
		archivo.ID = "file-1"
	}
	m.files[archivo.ID] = *archivo
	return nil
}

func (m *mockFileRepo) FindByID(ctx context.Context, id string) (*models.Archivo, error) {
	if f, ok := m.files[id]; ok {
		found := f
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFileRepo) ListByProject(ctx context.Context, projectID string) ([]models.Archivo, error) {
	var result []models.Archivo
	for _, f := range m.files {
		if f.ProyectoID == projectID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (m *mockFileRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.files, id)
	return nil
}

// uploadHeader builds a real multipart file header the way gin hands it to the
// service.
func uploadHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="archivo"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["archivo"][0]
}

func newFileService(t *testing.T, projects *mockProjectRepo, repo *mockFileRepo) (*FileService, *storage.LocalStorage) {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewFileService(repo, projects, blobs, signer, nil, zap.NewNop(), FileConfig{
		MaxSizeBytes: 1024,
		AllowedMIMEs: []string{"application/pdf"},
	})
	return svc, blobs
}

func TestFileServiceUpload(t *testing.T) {
	repo := &mockFileRepo{}
	svc, blobs := newFileService(t, seedProject(models.StatusDraft, ""), repo)

	pdf := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0x20}, 64)...)
	header := uploadHeader(t, "propuesta.pdf", "application/pdf", pdf)

	archivo, err := svc.Upload(context.Background(), studentClaims("student-1"), "p1", header, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "propuesta.pdf", archivo.NombreOriginal)
	assert.Equal(t, "application/pdf", archivo.MimeType)
	assert.True(t, strings.HasPrefix(archivo.NombreAlmacen, "p1/"))
	assert.Equal(t, "student-1", archivo.SubidoPor)

	handle, err := blobs.Open(archivo.NombreAlmacen)
	require.NoError(t, err)
	defer handle.Close() //nolint:errcheck
	stored, err := io.ReadAll(handle)
	require.NoError(t, err)
	assert.Equal(t, pdf, stored)
}

func TestFileServiceUploadTooLarge(t *testing.T) {
	svc, _ := newFileService(t, seedProject(models.StatusDraft, ""), &mockFileRepo{})

	big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0x20}, 2048)...)
	header := uploadHeader(t, "grande.pdf", "application/pdf", big)

	_, err := svc.Upload(context.Background(), studentClaims("student-1"), "p1", header, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestFileServiceUploadDisallowedType(t *testing.T) {
	svc, _ := newFileService(t, seedProject(models.StatusDraft, ""), &mockFileRepo{})

	// An HTML payload sniffs as text/html no matter what the client declares.
	header := uploadHeader(t, "pagina.pdf", "application/pdf", []byte("<html><body>hola</body></html>"))

	_, err := svc.Upload(context.Background(), studentClaims("student-1"), "p1", header, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestFileServiceUploadForbidden(t *testing.T) {
	svc, _ := newFileService(t, seedProject(models.StatusDraft, "tutor-1"), &mockFileRepo{})

	header := uploadHeader(t, "propuesta.pdf", "application/pdf", []byte("%PDF-1.4\n"))

	_, err := svc.Upload(context.Background(), studentClaims("student-2"), "p1", header, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)
}

func TestFileServiceUploadCleansOrphanOnMetadataFailure(t *testing.T) {
	repo := &mockFileRepo{err: sql.ErrConnDone}
	svc, blobs := newFileService(t, seedProject(models.StatusDraft, ""), repo)

	header := uploadHeader(t, "propuesta.pdf", "application/pdf", []byte("%PDF-1.4\n"))
	_, err := svc.Upload(context.Background(), studentClaims("student-1"), "p1", header, models.RequestMeta{})
	require.Error(t, err)

	deleted, err := blobs.CleanupOlderThan(-time.Hour)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestFileServiceSignAndOpenByToken(t *testing.T) {
	repo := &mockFileRepo{}
	svc, _ := newFileService(t, seedProject(models.StatusDraft, ""), repo)

	header := uploadHeader(t, "propuesta.pdf", "application/pdf", []byte("%PDF-1.4\n"))
	archivo, err := svc.Upload(context.Background(), studentClaims("student-1"), "p1", header, models.RequestMeta{})
	require.NoError(t, err)

	signed, err := svc.SignDownload(context.Background(), studentClaims("student-1"), archivo.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Token)
	assert.True(t, signed.ExpiresAt.After(time.Now()))

	opened, handle, err := svc.OpenByToken(context.Background(), signed.Token)
	require.NoError(t, err)
	defer handle.Close() //nolint:errcheck
	assert.Equal(t, archivo.ID, opened.ID)

	_, _, err = svc.OpenByToken(context.Background(), signed.Token+"x")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", appErrors.FromError(err).Code)
}

func TestFileServiceDeletePermissions(t *testing.T) {
	repo := &mockFileRepo{files: map[string]models.Archivo{
		"file-1": {ID: "file-1", ProyectoID: "p1", NombreAlmacen: "p1/doc.pdf", SubidoPor: "student-1"},
	}}
	svc, _ := newFileService(t, seedProject(models.StatusDraft, ""), repo)

	err := svc.Delete(context.Background(), tutorClaims("tutor-9"), "file-1", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), studentClaims("student-1"), "file-1", models.RequestMeta{}))
	assert.Equal(t, []string{"file-1"}, repo.deleted)
}
