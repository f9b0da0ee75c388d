package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sgpt-dev/sgpt-api/internal/dto"
	"github.com/sgpt-dev/sgpt-api/internal/models"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
)

type mockChatRepo struct {
	conversations map[string]models.Conversation
	messages      map[string][]models.ChatMessage
	uploads       []models.ChatUpload
	deleted       []string
}

func (m *mockChatRepo) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if m.conversations == nil {
		m.conversations = make(map[string]models.Conversation)
	}
	if conv.ID == "" {
		conv.ID = fmt.Sprintf("conv-%d", len(m.conversations)+1)
	}
	m.conversations[conv.ID] = *conv
	return nil
}

func (m *mockChatRepo) FindConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if c, ok := m.conversations[id]; ok {
		found := c
		return &found, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChatRepo) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var result []models.Conversation
	for _, c := range m.conversations {
		if c.UsuarioID == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockChatRepo) DeleteConversation(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.conversations, id)
	return nil
}

func (m *mockChatRepo) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if m.messages == nil {
		m.messages = make(map[string][]models.ChatMessage)
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg-%d", len(m.messages[msg.ConversacionID])+1)
	}
	m.messages[msg.ConversacionID] = append(m.messages[msg.ConversacionID], *msg)
	return nil
}

func (m *mockChatRepo) ListMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	return m.messages[conversationID], nil
}

func (m *mockChatRepo) CreateUpload(ctx context.Context, upload *models.ChatUpload) error {
	upload.ID = "upload-1"
	m.uploads = append(m.uploads, *upload)
	return nil
}

type mockCompleter struct {
	reply    string
	err      error
	received []AssistantMessage
}

func (m *mockCompleter) Complete(ctx context.Context, messages []AssistantMessage) (string, error) {
	m.received = messages
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func TestChatServiceSendMessageStartsConversation(t *testing.T) {
	repo := &mockChatRepo{}
	assistant := &mockCompleter{reply: "Claro, puedo ayudarte con eso."}
	svc := NewChatService(repo, assistant, nil, validator.New(), zap.NewNop())

	resp, err := svc.SendMessage(context.Background(), studentClaims("student-1"), dto.SendMessageRequest{
		Mensaje: "¿Cómo redacto el objetivo general de mi tesis?",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversacionID)
	assert.Equal(t, "Claro, puedo ayudarte con eso.", resp.Respuesta)

	conv := repo.conversations[resp.ConversacionID]
	assert.Equal(t, "student-1", conv.UsuarioID)
	assert.Equal(t, "¿Cómo redacto el objetivo general de mi tesis?", conv.Titulo)

	saved := repo.messages[resp.ConversacionID]
	require.Len(t, saved, 2)
	assert.Equal(t, models.ChatRoleUser, saved[0].Rol)
	assert.Equal(t, models.ChatRoleAssistant, saved[1].Rol)
}

func TestChatServiceSendMessageLimitsHistoryWindow(t *testing.T) {
	repo := &mockChatRepo{}
	assistant := &mockCompleter{reply: "ok"}
	svc := NewChatService(repo, assistant, nil, validator.New(), zap.NewNop())

	conv := &models.Conversation{UsuarioID: "student-1", Titulo: "larga"}
	require.NoError(t, repo.CreateConversation(context.Background(), conv))
	for i := 0; i < 30; i++ {
		require.NoError(t, repo.CreateMessage(context.Background(), &models.ChatMessage{
			ConversacionID: conv.ID,
			Rol:            models.ChatRoleUser,
			Contenido:      fmt.Sprintf("mensaje %d", i),
		}))
	}

	_, err := svc.SendMessage(context.Background(), studentClaims("student-1"), dto.SendMessageRequest{
		ConversacionID: conv.ID,
		Mensaje:        "último",
	})
	require.NoError(t, err)
	assert.Len(t, assistant.received, historyWindow)
	assert.Equal(t, "último", assistant.received[len(assistant.received)-1].Content)
}

func TestChatServiceSendMessageForeignConversation(t *testing.T) {
	repo := &mockChatRepo{conversations: map[string]models.Conversation{
		"c1": {ID: "c1", UsuarioID: "student-1", Titulo: "mía"},
	}}
	svc := NewChatService(repo, &mockCompleter{reply: "ok"}, nil, validator.New(), zap.NewNop())

	_, err := svc.SendMessage(context.Background(), studentClaims("student-2"), dto.SendMessageRequest{
		ConversacionID: "c1",
		Mensaje:        "hola",
	})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)
}

func TestChatServiceSendMessageAssistantFailureKeepsUserTurn(t *testing.T) {
	repo := &mockChatRepo{}
	assistant := &mockCompleter{err: appErrors.New("ASSISTANT_ERROR", 502, "el asistente respondió 500")}
	svc := NewChatService(repo, assistant, nil, validator.New(), zap.NewNop())

	_, err := svc.SendMessage(context.Background(), studentClaims("student-1"), dto.SendMessageRequest{Mensaje: "hola"})
	require.Error(t, err)
	assert.Equal(t, "ASSISTANT_ERROR", appErrors.FromError(err).Code)

	// The user turn stays persisted so the client can retry.
	require.Len(t, repo.conversations, 1)
	for id := range repo.conversations {
		require.Len(t, repo.messages[id], 1)
		assert.Equal(t, models.ChatRoleUser, repo.messages[id][0].Rol)
	}
}

func TestChatServiceDeleteConversation(t *testing.T) {
	repo := &mockChatRepo{conversations: map[string]models.Conversation{
		"c1": {ID: "c1", UsuarioID: "student-1"},
	}}
	svc := NewChatService(repo, &mockCompleter{}, nil, validator.New(), zap.NewNop())

	err := svc.DeleteConversation(context.Background(), studentClaims("student-2"), "c1")
	require.Error(t, err)

	require.NoError(t, svc.DeleteConversation(context.Background(), studentClaims("student-1"), "c1"))
	assert.Equal(t, []string{"c1"}, repo.deleted)
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "Nueva conversación", truncateTitle("   "))
	assert.Equal(t, "hola", truncateTitle(" hola "))

	long := strings.Repeat("a", 80)
	assert.Len(t, truncateTitle(long), 60)

	accented := strings.Repeat("á", 80)
	title := truncateTitle(accented)
	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, 60, utf8.RuneCountInString(title))
}
