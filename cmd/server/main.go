package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/agenthub-platform/agenthub/internal/cache"
	"github.com/agenthub-platform/agenthub/internal/config"
	"github.com/agenthub-platform/agenthub/internal/crypto"
	"github.com/agenthub-platform/agenthub/internal/database"
	"github.com/agenthub-platform/agenthub/internal/execution"
	"github.com/agenthub-platform/agenthub/internal/handler"
	"github.com/agenthub-platform/agenthub/internal/logger"
	"github.com/agenthub-platform/agenthub/internal/middleware"
	"github.com/agenthub-platform/agenthub/internal/store"
	"github.com/agenthub-platform/agenthub/internal/version"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Close()

	db, err := database.New(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	log.Info("Running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	if cfg.AuthEnabled {
		log.Info("Authentication enabled")
	} else {
		log.Info("Authentication disabled, running as dev user", "user_id", cfg.DevUserID)
		if err := db.Seed(cfg.DevUserID); err != nil {
			log.Fatal("Failed to seed database", "error", err)
		}
	}

	// Single process-wide store handle, shared by all request handlers.
	s := store.New(db.DB)

	if cfg.AuthEnabled {
		if err := s.DeleteExpiredAccessTokens(context.Background()); err != nil {
			log.Warn("Failed to sweep expired access tokens", "error", err)
		}
	}

	var c cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to configure Redis cache", "error", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(ctx); err != nil {
			log.Fatal("Failed to reach Redis", "error", err)
		}
		cancel()
		c = redisCache
		log.Info("Cache backend: redis")
	} else {
		c = cache.NewMemoryCache()
		log.Info("Cache backend: in-process memory")
	}

	exec := execution.New(cfg.AgentServerURL)
	log.Info("Execution server configured", "url", cfg.AgentServerURL)

	var enc *crypto.Encryptor
	if cfg.EnvVarEncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EnvVarEncryptionKey)
		if err != nil {
			log.Fatal("ENV_VAR_ENCRYPTION_KEY must be hex encoded", "error", err)
		}
		enc, err = crypto.NewEncryptor(key)
		if err != nil {
			log.Fatal("Invalid env var encryption key", "error", err)
		}
		log.Info("Env var encryption enabled")
	}

	h := handler.New(s, cfg, c, exec, enc, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, version.Get())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(s, cfg))

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)

			r.Route("/{agentId}", func(r chi.Router) {
				r.Get("/", h.GetAgent)
				r.Put("/", h.UpdateAgent)
				r.Delete("/", h.DeleteAgent)

				r.Get("/files/{fileId}", h.GetAgentFile)
				r.Post("/star", h.StarAgent)
				r.Post("/verify", h.VerifyAgent)
				r.Post("/env-vars", h.SetAgentEnvVar)
				r.Delete("/env-vars", h.DeleteAgentEnvVar)
				r.Post("/invoke", h.InvokeAgent)
			})
		})

		r.Get("/jobs/{jobId}", h.GetJob)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Patch("/", h.PatchSession)
				r.Delete("/", h.DeleteSession)

				r.Get("/messages", h.ListMessages)
				r.Post("/messages", h.AppendMessage)
				r.Post("/messages/bulk", h.AppendMessagesBulk)

				r.Get("/variables", h.ListVariables)
				r.Post("/variables", h.UpsertVariable)
				r.Put("/variables/{key}", h.UpdateVariable)
				r.Delete("/variables/{key}", h.DeleteVariable)
			})
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "version", version.Get())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}
