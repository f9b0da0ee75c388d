package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/dto"
	"github.com/sgpt-dev/sgpt-api/internal/service"
	appErrors "github.com/sgpt-dev/sgpt-api/pkg/errors"
	"github.com/sgpt-dev/sgpt-api/pkg/response"
)

// ChatHandler wires HTTP endpoints to the chat service.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler creates a new handler.
func NewChatHandler(svc *service.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// SendMessage godoc
// @Summary Send a message to the assistant
// @Description Persists the user turn, forwards the conversation upstream and
// returns the assistant reply
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SendMessageRequest true "Message payload"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /chat/mensaje [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "mensaje inválido"))
		return
	}

	res, err := h.service.SendMessage(c.Request.Context(), currentClaims(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// CreateConversation godoc
// @Summary Start a titled conversation
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateConversationRequest true "Conversation payload"
// @Success 201 {object} response.Envelope
// @Router /chat/conversaciones [post]
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req dto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "payload inválido"))
		return
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), currentClaims(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, conv)
}

// ListConversations godoc
// @Summary List the caller's conversations
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /chat/conversaciones [get]
func (h *ChatHandler) ListConversations(c *gin.Context) {
	convs, err := h.service.ListConversations(c.Request.Context(), currentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, convs, nil)
}

// DeleteConversation godoc
// @Summary Delete a conversation
// @Tags Chat
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /chat/conversaciones/{id} [delete]
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.service.DeleteConversation(c.Request.Context(), currentClaims(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Conversation message history
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} response.Envelope
// @Router /chat/conversaciones/{id}/mensajes [get]
func (h *ChatHandler) History(c *gin.Context) {
	// Also mounted at /chat/historial, where the conversation comes in as a
	// query parameter.
	id := c.Param("id")
	if id == "" {
		id = c.Query("conversacion_id")
	}
	messages, err := h.service.History(c.Request.Context(), currentClaims(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// Upload godoc
// @Summary Share a document with the assistant
// @Tags Chat
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param archivo formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /chat/archivos [post]
func (h *ChatHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("archivo")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "archivo requerido"))
		return
	}

	upload, err := h.service.Upload(c.Request.Context(), currentClaims(c), header)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, upload)
}
