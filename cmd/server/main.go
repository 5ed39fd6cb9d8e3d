package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/scribehub/api/internal/auth"
	"github.com/scribehub/api/internal/client"
	"github.com/scribehub/api/internal/config"
	"github.com/scribehub/api/internal/handler"
	"github.com/scribehub/api/internal/middleware"
	"github.com/scribehub/api/internal/repository"
	"github.com/scribehub/api/internal/repository/pgrepo"
	"github.com/scribehub/api/internal/repository/redisrepo"
	"github.com/scribehub/api/internal/service"
	ws "github.com/scribehub/api/internal/websocket"
	"github.com/scribehub/api/internal/worker"
	"github.com/scribehub/api/pkg/response"
)

// @title          ScribeHub API
// @version        1.0
// @description    Upload recordings and poll for their transcription and summary.
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	// Persistence
	var (
		recordingRepo repository.RecordingRepository
		userRepo      repository.UserRepository
	)
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := pgrepo.Open(cfg.Storage.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open postgres: %v", err)
		}
		recordingRepo = pgrepo.NewRecordingRepository(db)
		userRepo = pgrepo.NewUserRepository(db)
		log.Println("Info: storing recordings in Postgres")
	case "redis", "":
		recordingRepo = redisrepo.NewRecordingRepository(redisClient)
		userRepo = redisrepo.NewUserRepository(redisClient)
	default:
		log.Fatalf("Unknown storage driver %q", cfg.Storage.Driver)
	}

	// Blob storage
	var storage client.StorageClient
	switch cfg.Blob.Driver {
	case "s3":
		storage, err = client.NewS3Client(&cfg.Blob.S3)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
	case "local", "":
		storage, err = client.NewLocalClient(cfg.Blob.UploadDir)
		if err != nil {
			log.Fatalf("Failed to initialize upload dir: %v", err)
		}
		log.Printf("Info: storing uploads under %s", cfg.Blob.UploadDir)
	default:
		log.Fatalf("Unknown blob driver %q", cfg.Blob.Driver)
	}

	// Transcription providers
	deepgramClient := client.NewDeepgramClient(&cfg.Deepgram)
	chatClient := client.NewChatClient(&cfg.Summarizer)
	transcriber := service.NewTranscriber(deepgramClient, chatClient)
	if !deepgramClient.IsConfigured() {
		log.Println("Info: Deepgram not configured, using mock transcriber")
	}

	// OIDC verifier (optional, session tokens are always accepted)
	var tokenVerifier auth.TokenVerifier
	if cfg.OIDC.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}
	authenticator := auth.NewAuthenticator(tokenVerifier, cfg.JWT.Secret)

	// Services
	dispatcher := service.NewTaskDispatcher(asynqClient, cfg.Transcription.Timeout)
	recordingService := service.NewRecordingService(recordingRepo, storage, transcriber, dispatcher, hub, service.RecordingOptions{
		TranscriptionTimeout: cfg.Transcription.Timeout,
		StuckAfter:           cfg.Worker.StuckAfter,
	})
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)

	// Handlers
	bodyLimit := cfg.Server.BodyLimitMB * 1024 * 1024
	authHandler := handler.NewAuthHandler(authService, authenticator, validate)
	recordingHandler := handler.NewRecordingHandler(recordingService, hub, int64(bodyLimit))

	// Middleware
	var apiAuth, wsAuth fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: ForwardAuth already ran, read X-User-* headers
		log.Println("Info: Gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware()
		wsAuth = apiAuth
	} else {
		authMiddleware := middleware.NewAuthMiddleware(authenticator)
		apiAuth = authMiddleware.Authenticate()
		wsAuth = authMiddleware.AuthenticateQuery("token")
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    bodyLimit,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":      redisClient.Ping(c.Context()).Err() == nil,
				"storage":    cfg.Storage.Driver,
				"blob":       cfg.Blob.Driver,
				"deepgram":   deepgramClient.IsConfigured(),
				"summarizer": chatClient.IsConfigured(),
				"oidc":       tokenVerifier != nil,
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", rateLimiter.AuthLimit(cfg.RateLimit.AuthPerMin), authHandler.Register)
	authRoutes.Post("/login", rateLimiter.AuthLimit(cfg.RateLimit.AuthPerMin), authHandler.Login)
	authRoutes.Get("/me", apiAuth, authHandler.Me)

	recordings := api.Group("/recordings", apiAuth)
	recordings.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), recordingHandler.Upload)
	recordings.Get("/", recordingHandler.List)
	recordings.Get("/:id/status", recordingHandler.Status)
	recordings.Get("/:id", recordingHandler.Detail)

	// WebSocket routes
	app.Use("/ws", handler.RequireUpgrade)
	app.Get("/ws/recordings/:id", wsAuth, websocket.New(recordingHandler.Watch))

	// Background processing
	workerServer := worker.NewServer(redisOpt, cfg.Worker.Concurrency, cfg.Server.LogLevel)
	mux := worker.NewServeMux(
		worker.NewTranscribeWorker(recordingService),
		worker.NewSweepWorker(recordingService),
	)
	if err := workerServer.Start(mux); err != nil {
		log.Fatalf("Failed to start asynq worker: %v", err)
	}

	scheduler, err := worker.NewScheduler(redisOpt, cfg.Worker.SweepInterval, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to register sweep schedule: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Printf("Server error: %v", err)
	}

	scheduler.Shutdown()
	workerServer.Shutdown()
	hub.Stop()
	log.Println("Server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
