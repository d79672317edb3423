package api

import (
	"net/http"

	"github.com/danverh/support-chat/internal/api/handler"
	customMiddleware "github.com/danverh/support-chat/internal/api/middleware"
	"github.com/danverh/support-chat/internal/repository/redis"
	"github.com/danverh/support-chat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures the HTTP router. rateLimiter is
// optional; with nil the chat endpoint is not throttled.
func NewRouter(chatService *service.ChatService, rateLimiter *redis.RateLimiter) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	chatHandler := handler.NewChatHandler(chatService)
	sessionHandler := handler.NewSessionHandler(chatService)
	adminHandler := handler.NewAdminHandler(chatService)

	r.Get("/", handler.Banner)
	r.Get("/health", handler.HealthCheck(chatService))

	r.Group(func(r chi.Router) {
		if rateLimiter != nil {
			r.Use(customMiddleware.NewRateLimitMiddleware(rateLimiter).Limit)
		}
		r.Post("/chat", chatHandler.Chat)
	})

	r.Route("/session", func(r chi.Router) {
		r.Post("/history", sessionHandler.History)
		r.Delete("/", sessionHandler.Delete)
		r.Get("/list/{userID}", sessionHandler.List)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/model/update", adminHandler.UpdateModel)
		r.Post("/model/reload", adminHandler.ReloadModel)
		r.Post("/plugins/reload", adminHandler.ReloadPlugins)
		r.Get("/status", adminHandler.Status)
	})

	return r
}
