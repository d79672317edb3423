package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danverh/support-chat/internal/api/response"
	"github.com/danverh/support-chat/internal/domain"
	"github.com/danverh/support-chat/internal/service"
	"github.com/danverh/support-chat/internal/session"
	"github.com/go-chi/chi/v5"
)

// SessionHandler handles session inspection and cleanup endpoints
type SessionHandler struct {
	chatService *service.ChatService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(chatService *service.ChatService) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

type sessionRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// History returns a session's full message log.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	sess, err := h.chatService.SessionHistory(req.UserID, req.SessionID)
	if err != nil {
		sessionError(w, err)
		return
	}

	response.OK(w, struct {
		Success bool             `json:"success"`
		Session *session.Session `json:"session"`
	}{Success: true, Session: sess})
}

// Delete removes a session.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.chatService.DeleteSession(req.UserID, req.SessionID); err != nil {
		sessionError(w, err)
		return
	}

	response.OK(w, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{Success: true, Message: "session deleted"})
}

// List returns summaries of every session owned by the user in the path.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.BadRequest(w, "missing user id")
		return
	}

	response.OK(w, struct {
		Success  bool           `json:"success"`
		Sessions []session.Info `json:"sessions"`
	}{Success: true, Sessions: h.chatService.UserSessions(userID)})
}

// sessionError reports missing and foreign sessions with the same
// message, so a caller probing ids cannot tell whether one exists.
func sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
		response.Fail(w, http.StatusOK, "session not found or not accessible")
		return
	}
	response.BusinessError(w, err)
}
