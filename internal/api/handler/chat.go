package handler

import (
	"encoding/json"
	"net/http"

	"github.com/danverh/support-chat/internal/api/response"
	"github.com/danverh/support-chat/internal/service"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ChatHandler handles the conversation endpoint
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type chatRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Success   bool                     `json:"success"`
	Response  string                   `json:"response"`
	SessionID string                   `json:"session_id"`
	ToolCalls []service.ToolCallRecord `json:"tool_calls,omitempty"`
}

// Chat runs one conversation turn.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.chatService.ProcessMessage(r.Context(), req.UserID, req.Message, req.SessionID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.OK(w, chatResponse{
		Success:   true,
		Response:  result.Response,
		SessionID: result.SessionID,
		ToolCalls: result.ToolCalls,
	})
}
