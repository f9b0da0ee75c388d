package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

type fileRepository interface {
	Create(ctx context.Context, archivo *models.Archivo) error
	FindByID(ctx context.Context, id string) (*models.Archivo, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Archivo, error)
	Delete(ctx context.Context, id string) error
}

type fileProjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
}

type blobStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

// FileConfig bounds uploads.
type FileConfig struct {
	MaxSizeBytes int64
	AllowedMIMEs []string
}

// SignedDownload points a client at the download endpoint with a signed token.
type SignedDownload struct {
	Archivo   *models.Archivo `json:"archivo"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expira_en"`
}

// FileService manages project attachments on local disk.
type FileService struct {
	repo     fileRepository
	projects fileProjectLookup
	storage  blobStorage
	signer   downloadSigner
	audit    auditLogger
	logger   *zap.Logger
	config   FileConfig
}

// NewFileService constructs a FileService instance.
func NewFileService(repo fileRepository, projects fileProjectLookup, storage blobStorage, signer downloadSigner, audit auditLogger, logger *zap.Logger, config FileConfig) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxSizeBytes <= 0 {
		config.MaxSizeBytes = 10 * 1024 * 1024
	}
	return &FileService{repo: repo, projects: projects, storage: storage, signer: signer, audit: audit, logger: logger, config: config}
}

// Upload validates and stores a document attached to a project. Only users
// who can view the project may attach files to it.
func (s *FileService) Upload(ctx context.Context, claims *models.JWTClaims, projectID string, header *multipart.FileHeader, meta models.RequestMeta) (*models.Archivo, error) {
	project, err := s.accessibleProject(ctx, claims, projectID)
	if err != nil {
		return nil, err
	}

	if header.Size > s.config.MaxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("el archivo supera el tamaño máximo de %d bytes", s.config.MaxSizeBytes))
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "no se pudo leer el archivo")
	}
	defer file.Close() //nolint:errcheck

	// Sniff the real content type instead of trusting the client header.
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	mimeType := http.DetectContentType(buf[:n])
	if base, _, found := strings.Cut(mimeType, ";"); found {
		mimeType = strings.TrimSpace(base)
	}
	if !s.mimeAllowed(mimeType, header) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("tipo de archivo no permitido: %s", mimeType))
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewind upload")
	}

	storedName := filepath.Join(project.ID, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	if _, err := s.storage.SaveStream(storedName, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	archivo := &models.Archivo{
		ProyectoID:     project.ID,
		NombreOriginal: filepath.Base(header.Filename),
		NombreAlmacen:  storedName,
		MimeType:       mimeType,
		Tamano:         header.Size,
		SubidoPor:      claims.UserID,
	}
	if err := s.repo.Create(ctx, archivo); err != nil {
		if delErr := s.storage.Delete(storedName); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("file", storedName), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save file metadata")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"nombre": archivo.NombreOriginal, "tamano": archivo.Tamano})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionFileUpload,
		Resource:   "archivos",
		ResourceID: &archivo.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return archivo, nil
}

// ListByProject returns the attachments of a project.
func (s *FileService) ListByProject(ctx context.Context, claims *models.JWTClaims, projectID string) ([]models.Archivo, error) {
	if _, err := s.accessibleProject(ctx, claims, projectID); err != nil {
		return nil, err
	}
	archivos, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	return archivos, nil
}

// SignDownload issues a short-lived token for downloading the file.
func (s *FileService) SignDownload(ctx context.Context, claims *models.JWTClaims, fileID string) (*SignedDownload, error) {
	archivo, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if _, err := s.accessibleProject(ctx, claims, archivo.ProyectoID); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(archivo.ID, archivo.NombreAlmacen)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &SignedDownload{Archivo: archivo, Token: token, ExpiresAt: expiresAt}, nil
}

// OpenByToken validates a signed token and opens the underlying file.
func (s *FileService) OpenByToken(ctx context.Context, token string) (*models.Archivo, *os.File, error) {
	fileID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "token de descarga inválido")
	}

	archivo, err := s.loadFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if archivo.NombreAlmacen != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token de descarga inválido")
	}

	handle, err := s.storage.Open(archivo.NombreAlmacen)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "el archivo ya no está disponible")
	}
	return archivo, handle, nil
}

// Delete removes the attachment and its stored bytes. The uploader and admins
// may delete.
func (s *FileService) Delete(ctx context.Context, claims *models.JWTClaims, fileID string, meta models.RequestMeta) error {
	archivo, err := s.loadFile(ctx, fileID)
	if err != nil {
		return err
	}

	if claims == nil || (claims.Rol != models.RoleAdmin && archivo.SubidoPor != claims.UserID) {
		return appErrors.Clone(appErrors.ErrForbidden, "no puede eliminar este archivo")
	}

	if err := s.repo.Delete(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file metadata")
	}
	if err := s.storage.Delete(archivo.NombreAlmacen); err != nil {
		s.logger.Warn("failed to remove stored file", zap.String("file", archivo.NombreAlmacen), zap.Error(err))
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"nombre": archivo.NombreOriginal})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionFileDelete,
		Resource:   "archivos",
		ResourceID: &fileID,
		OldValues:  oldPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return nil
}

func (s *FileService) loadFile(ctx context.Context, id string) (*models.Archivo, error) {
	archivo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archivo no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	return archivo, nil
}

func (s *FileService) accessibleProject(ctx context.Context, claims *models.JWTClaims, projectID string) (*models.Project, error) {
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

// mimeAllowed accepts sniffed types on the allow list. DOCX and other office
// formats sniff as application/zip, so the declared header type is accepted
// when the sniffed type is zip.
func (s *FileService) mimeAllowed(sniffed string, header *multipart.FileHeader) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	declared := header.Header.Get("Content-Type")
	for _, allowed := range s.config.AllowedMIMEs {
		if sniffed == allowed {
			return true
		}
		if sniffed == "application/zip" && declared == allowed {
			return true
		}
	}
	return false
}

func (s *FileService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
