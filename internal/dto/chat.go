package dto

// SendMessageRequest posts a user message to the assistant.
type SendMessageRequest struct {
	ConversacionID string  `json:"conversacion_id"`
	Mensaje        string  `json:"mensaje" validate:"required"`
	ArchivoID      *string `json:"archivo_id"`
}

// SendMessageResponse carries the assistant reply.
type SendMessageResponse struct {
	ConversacionID string `json:"conversacion_id"`
	Respuesta      string `json:"respuesta"`
}

// CreateConversationRequest starts a named conversation.
type CreateConversationRequest struct {
	Titulo string `json:"titulo" validate:"required"`
}

// CanvasStreamQuery parameterises the thesis-generation SSE endpoints.
type CanvasStreamQuery struct {
	ProyectoID string `form:"proyecto_id" binding:"required"`
	Seccion    string `form:"seccion"`
}
