package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danverh/support-chat/internal/api"
	"github.com/danverh/support-chat/internal/config"
	"github.com/danverh/support-chat/internal/llm"
	"github.com/danverh/support-chat/internal/llm/openai"
	"github.com/danverh/support-chat/internal/logger"
	"github.com/danverh/support-chat/internal/plugin"
	"github.com/danverh/support-chat/internal/repository/redis"
	"github.com/danverh/support-chat/internal/service"
	"github.com/danverh/support-chat/internal/session"
	"github.com/danverh/support-chat/internal/store"
	"github.com/danverh/support-chat/internal/tools"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logger.Setup(cfg.Logging); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	// Missing credentials must stop the process before it serves traffic.
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("model", cfg.LLM.Model).
		Msg("Starting support chat server")

	ctx := context.Background()

	// Demo business data
	businessStore, err := store.Open(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open business store")
	}
	defer businessStore.Close()

	// Plugins
	pluginRegistry := plugin.NewRegistry(tools.Sources(businessStore, cfg.Chat.ToolLatency)...)
	pluginRegistry.LoadAll()

	// Model registry
	modelRegistry, err := llm.NewRegistry(llm.Config{
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		APIBase: cfg.LLM.APIBase,
	}, func(c llm.Config) (llm.Client, error) {
		return openai.NewClient(c.Model, c.APIKey, c.APIBase)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize model client")
	}

	// Sessions
	sessionStore := session.NewStore()
	if cfg.Chat.SessionMaxIdle > 0 {
		go evictLoop(sessionStore, cfg.Chat.SessionMaxIdle, cfg.Chat.EvictInterval)
	}

	chatService := service.NewChatService(sessionStore, pluginRegistry, modelRegistry, service.Options{
		MaxToolRounds: cfg.Chat.MaxToolRounds,
		MaxHistory:    cfg.Chat.MaxHistory,
		ModelTimeout:  cfg.Chat.ModelTimeout,
		ToolTimeout:   cfg.Chat.ToolTimeout,
	})

	// Optional Redis-backed rate limiting
	var rateLimiter *redis.RateLimiter
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		rateLimiter = redis.NewRateLimiter(
			redisClient,
			cfg.Redis.RateLimit.RequestsPerMinute,
			cfg.Redis.RateLimit.Burst,
		)
	}

	router := api.NewRouter(chatService, rateLimiter)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func evictLoop(s *session.Store, maxIdle, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		s.EvictIdle(maxIdle)
	}
}
