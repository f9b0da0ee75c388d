package service

import (
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/dto"
	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

// historyWindow bounds how many prior messages travel upstream per request.
const historyWindow = 20

type chatRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	FindConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error)
	CreateUpload(ctx context.Context, upload *models.ChatUpload) error
}

type assistantCompleter interface {
	Complete(ctx context.Context, messages []AssistantMessage) (string, error)
}

// ChatService manages assistant conversations and the message round trip.
type ChatService struct {
	repo      chatRepository
	assistant assistantCompleter
	storage   blobStorage
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs a ChatService instance.
func NewChatService(repo chatRepository, assistant assistantCompleter, storage blobStorage, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ChatService{repo: repo, assistant: assistant, storage: storage, validator: validate, logger: logger}
}

// CreateConversation starts a titled conversation for the caller.
func (s *ChatService) CreateConversation(ctx context.Context, claims *models.JWTClaims, req dto.CreateConversationRequest) (*models.Conversation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "título requerido")
	}

	conv := &models.Conversation{
		UsuarioID: claims.UserID,
		Titulo:    strings.TrimSpace(req.Titulo),
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create conversation")
	}
	return conv, nil
}

// ListConversations returns the caller's conversations.
func (s *ChatService) ListConversations(ctx context.Context, claims *models.JWTClaims) ([]models.Conversation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	convs, err := s.repo.ListConversations(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	return convs, nil
}

// DeleteConversation removes one of the caller's conversations.
func (s *ChatService) DeleteConversation(ctx context.Context, claims *models.JWTClaims, id string) error {
	if _, err := s.ownedConversation(ctx, claims, id); err != nil {
		return err
	}
	if err := s.repo.DeleteConversation(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete conversation")
	}
	return nil
}

// History returns a conversation's messages in chronological order.
func (s *ChatService) History(ctx context.Context, claims *models.JWTClaims, conversationID string) ([]models.ChatMessage, error) {
	if _, err := s.ownedConversation(ctx, claims, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, nil
}

// SendMessage persists the user turn, forwards the conversation upstream and
// persists the assistant reply. A missing conversation ID starts a new one
// titled with the message prefix.
func (s *ChatService) SendMessage(ctx context.Context, claims *models.JWTClaims, req dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "mensaje requerido")
	}

	var conv *models.Conversation
	if req.ConversacionID == "" {
		conv = &models.Conversation{
			UsuarioID: claims.UserID,
			Titulo:    truncateTitle(req.Mensaje),
		}
		if err := s.repo.CreateConversation(ctx, conv); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create conversation")
		}
	} else {
		var err error
		conv, err = s.ownedConversation(ctx, claims, req.ConversacionID)
		if err != nil {
			return nil, err
		}
	}

	userMsg := &models.ChatMessage{
		ConversacionID: conv.ID,
		Rol:            models.ChatRoleUser,
		Contenido:      req.Mensaje,
		ArchivoID:      req.ArchivoID,
	}
	if err := s.repo.CreateMessage(ctx, userMsg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save message")
	}

	history, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	reply, err := s.assistant.Complete(ctx, toAssistantMessages(history))
	if err != nil {
		return nil, err
	}

	assistantMsg := &models.ChatMessage{
		ConversacionID: conv.ID,
		Rol:            models.ChatRoleAssistant,
		Contenido:      reply,
	}
	if err := s.repo.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assistant reply")
	}

	return &dto.SendMessageResponse{ConversacionID: conv.ID, Respuesta: reply}, nil
}

// Upload stores a document shared with the assistant.
func (s *ChatService) Upload(ctx context.Context, claims *models.JWTClaims, header *multipart.FileHeader) (*models.ChatUpload, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "no se pudo leer el archivo")
	}
	defer file.Close() //nolint:errcheck

	storedName := filepath.Join("chat", claims.UserID, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	if _, err := s.storage.SaveStream(storedName, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	upload := &models.ChatUpload{
		UsuarioID:      claims.UserID,
		NombreOriginal: filepath.Base(header.Filename),
		NombreAlmacen:  storedName,
		MimeType:       header.Header.Get("Content-Type"),
		Tamano:         header.Size,
	}
	if err := s.repo.CreateUpload(ctx, upload); err != nil {
		if delErr := s.storage.Delete(storedName); delErr != nil {
			s.logger.Warn("failed to remove orphaned chat upload", zap.String("file", storedName), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save upload metadata")
	}
	return upload, nil
}

func (s *ChatService) ownedConversation(ctx context.Context, claims *models.JWTClaims, id string) (*models.Conversation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	conv, err := s.repo.FindConversation(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conversación no encontrada")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
	}
	if conv.UsuarioID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "la conversación pertenece a otro usuario")
	}
	return conv, nil
}

func toAssistantMessages(history []models.ChatMessage) []AssistantMessage {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]AssistantMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, AssistantMessage{Role: string(msg.Rol), Content: msg.Contenido})
	}
	return messages
}

func truncateTitle(message string) string {
	title := strings.TrimSpace(message)
	// Cut on a rune boundary so accented characters never get split.
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	if title == "" {
		title = "Nueva conversación"
	}
	return title
}
