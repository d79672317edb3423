package handler

import (
	"encoding/json"
	"net/http"

	"github.com/danverh/support-chat/internal/api/response"
	"github.com/danverh/support-chat/internal/llm"
	"github.com/danverh/support-chat/internal/plugin"
	"github.com/danverh/support-chat/internal/service"
)

// AdminHandler handles runtime reconfiguration endpoints
type AdminHandler struct {
	chatService *service.ChatService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(chatService *service.ChatService) *AdminHandler {
	return &AdminHandler{chatService: chatService}
}

type modelUpdateRequest struct {
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key"`
	APIBase   string `json:"api_base"`
}

type modelResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	ModelStatus llm.Info `json:"model_status"`
}

// UpdateModel swaps model name, key or base URL at runtime. A failed
// swap leaves the previous configuration active.
func (h *AdminHandler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	var req modelUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	info, err := h.chatService.UpdateModel(req.ModelName, req.APIKey, req.APIBase)
	if err != nil {
		response.OK(w, modelResponse{
			Success:     false,
			Message:     err.Error(),
			ModelStatus: info,
		})
		return
	}

	response.OK(w, modelResponse{
		Success:     true,
		Message:     "model configuration updated",
		ModelStatus: info,
	})
}

// ReloadModel re-reads the model configuration from the environment.
func (h *AdminHandler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	info, changed, err := h.chatService.ReloadModelFromEnv()
	if err != nil {
		response.OK(w, modelResponse{
			Success:     false,
			Message:     err.Error(),
			ModelStatus: info,
		})
		return
	}

	msg := "model configuration reloaded from environment"
	if !changed {
		msg = "environment configuration unchanged, nothing to do"
	}
	response.OK(w, modelResponse{
		Success:     true,
		Message:     msg,
		ModelStatus: info,
	})
}

type pluginsReloadResponse struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	PluginStatus  plugin.Status    `json:"plugin_status"`
	FailedPlugins []plugin.Failure `json:"failed_plugins,omitempty"`
}

// ReloadPlugins reloads every plugin; failures are reported per plugin
// and do not abort the rest.
func (h *AdminHandler) ReloadPlugins(w http.ResponseWriter, r *http.Request) {
	report := h.chatService.ReloadPlugins()

	msg := "all plugins reloaded"
	if len(report.Failed) > 0 {
		msg = "some plugins failed to reload"
	}
	response.OK(w, pluginsReloadResponse{
		Success:       len(report.Failed) == 0,
		Message:       msg,
		PluginStatus:  h.chatService.PluginStatus(),
		FailedPlugins: report.Failed,
	})
}

// Status reports the aggregate state of all registries.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.OK(w, struct {
		Success bool                  `json:"success"`
		Status  service.ServiceStatus `json:"status"`
	}{Success: true, Status: h.chatService.Status()})
}
