package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foundit-backend/internal/config"
	"foundit-backend/internal/handlers"
	"foundit-backend/internal/middleware"
	"foundit-backend/internal/repository"
	"foundit-backend/internal/search"
	"foundit-backend/internal/services"
	"foundit-backend/internal/session"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Apply pending migrations
	if err := repository.ApplyMigrations(context.Background(), db, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Connect to the session store
	sessions, err := session.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}

	// Optional full-text search
	var index *search.Meili
	if cfg.Meilisearch.URL != "" {
		index = search.NewMeili(cfg.Meilisearch.URL, cfg.Meilisearch.APIKey)
		defer index.Close()
	} else {
		log.Info().Msg("Search is not configured; /posts/search disabled")
	}

	// Optional push delivery
	var pushService *services.PushService
	if cfg.APNS.KeyFile != "" {
		pushService, err = services.NewPushService(
			cfg.APNS.KeyFile,
			cfg.APNS.KeyID,
			cfg.APNS.TeamID,
			cfg.APNS.Topic,
			cfg.APNS.Production,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push service")
		}
	} else {
		log.Info().Msg("Push is not configured; offline notifications disabled")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// Initialize services
	userService := services.NewUserService(userRepo, sessions, cfg.JWT.Secret)
	postService := services.NewPostService(postRepo, userRepo, indexOrNil(index))
	chatService := services.NewChatService(chatRepo, postRepo, userRepo)
	imageService, err := services.NewImageService(
		cfg.AWS.Region,
		cfg.AWS.S3Bucket,
		cfg.AWS.AccessKey,
		cfg.AWS.SecretKey,
		cfg.AWS.Endpoint,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image service")
	}
	wsHub := services.NewWSHub(postService, chatService)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	postHandler := handlers.NewPostHandler(postService, index, wsHub)
	chatHandler := handlers.NewChatHandler(chatService, userService, pushService, wsHub)
	imageHandler := handlers.NewImageHandler(imageService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, chatService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", userHandler.Register)
		r.Post("/auth/login", userHandler.Login)
		r.Post("/auth/refresh", userHandler.Refresh)
		r.Post("/auth/logout", userHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(userService))
			r.Get("/users/me", userHandler.Me)
			r.Put("/users/me/push-token", userHandler.SetPushToken)

			r.Get("/posts", postHandler.List)
			r.Post("/posts", postHandler.Create)
			r.Get("/posts/mine", postHandler.Mine)
			r.Get("/posts/search", postHandler.Search)
			r.Post("/posts/{postID}/resolve", postHandler.Resolve)
			r.Delete("/posts/{postID}", postHandler.Delete)

			r.Get("/chats", chatHandler.List)
			r.Get("/chats/{peerID}", chatHandler.Conversation)
			r.Post("/chats/{peerID}/messages", chatHandler.SendMessage)

			r.Post("/images/upload", imageHandler.GrantUpload)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// indexOrNil keeps the nil-interface pitfall out of the service: a nil
// *Meili stored in a PostIndexer is not a nil interface.
func indexOrNil(index *search.Meili) services.PostIndexer {
	if index == nil {
		return nil
	}
	return index
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
