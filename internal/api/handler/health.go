package handler

import (
	"net/http"

	"github.com/danverh/support-chat/internal/api/response"
	"github.com/danverh/support-chat/internal/service"
)

// Banner identifies the service at the root path.
func Banner(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"service": "support-chat",
		"message": "customer service chatbot API",
		"docs":    "/health, /chat, /session, /admin",
	})
}

// HealthCheck reports liveness plus a short summary of the registries.
func HealthCheck(chatService *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := chatService.Status()
		response.OK(w, map[string]any{
			"status":  "healthy",
			"message": "service is running",
			"details": map[string]any{
				"model":          st.Model.ModelName,
				"plugins_loaded": st.Plugins.TotalPlugins,
				"tools_loaded":   st.Plugins.TotalTools,
				"sessions":       st.Sessions.TotalSessions,
			},
		})
	}
}
