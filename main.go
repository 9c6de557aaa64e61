package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dlvideo/config"
	"dlvideo/internal/auth"
	"dlvideo/internal/handler"
	"dlvideo/internal/media"
	"dlvideo/internal/service"
	"dlvideo/internal/storage"
	"dlvideo/internal/task"
	"dlvideo/pkg/logger"
	"dlvideo/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Media Download Server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	// Initialize storage manager
	storageManager := storage.NewManager(&cfg.Storage)
	if err := storageManager.EnsureDirs(); err != nil {
		logger.Logger.Fatal("Failed to create working directories", zap.Error(err))
	}
	storageManager.SweepStale()
	storageManager.Start()
	defer storageManager.Stop()

	// Open the credential store and sweep stale sessions from prior runs
	store, err := auth.Open(cfg.Auth.DataFile)
	if err != nil {
		logger.Logger.Fatal("Failed to open credential store", zap.Error(err))
	}
	authManager := auth.NewManager(store, &cfg.Auth)
	authManager.SweepSessions()

	// Media toolchain
	runner := media.ExecRunner{}
	prober := media.NewProber(&cfg.Media, runner)
	fileProbe := media.NewFileProbe(&cfg.Media, runner)
	engine := media.NewEngine(&cfg.Media, runner)
	verifier := media.NewVerifier(&cfg.Media, fileProbe, runner)
	audioProcessor := media.NewProcessor(&cfg.Media, fileProbe, runner)

	// Task registry and worker pool
	registry := task.NewRegistry()
	pool := task.NewPool(cfg.Worker.PoolSize)

	// Initialize quota service
	quotaService := service.NewQuotaService(&cfg.Quota)
	defer quotaService.Stop()

	// Initialize rate limit service
	rateLimitService := service.NewRateLimitService(&cfg.RateLimit)
	defer rateLimitService.Stop()

	downloadService := service.NewDownloadService(
		cfg, prober, engine, verifier, audioProcessor,
		registry, pool, storageManager, quotaService,
	)
	audioService := service.NewAudioService(cfg, audioProcessor, registry, pool, storageManager)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Add middleware
	router.Use(logger.GinLogger())

	// Rate limiting sits in front of authentication so that login itself is
	// shielded from brute-force traffic.
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(rateLimitService))
		logger.Logger.Info("Rate limiting enabled", zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute))
	}

	// API handlers
	downloadHandler := handler.NewDownloadHandler(downloadService, cfg, quotaService, registry, storageManager)
	audioHandler := handler.NewAudioHandler(audioService, cfg, registry, storageManager)
	authHandler := handler.NewAuthHandler(authManager, cfg)

	// Routes
	api := router.Group("/api")
	{
		// Public
		api.GET("/health", downloadHandler.HealthCheck)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/auth/verify", authHandler.Verify)

		// Authenticated
		authed := api.Group("")
		authed.Use(middleware.AuthRequired(authManager))
		{
			authed.GET("/auth/me", authHandler.Me)
			authed.POST("/auth/change-password", authHandler.ChangePassword)

			authed.POST("/analyze", downloadHandler.Analyze)
			authed.POST("/download", downloadHandler.StartDownload)
			authed.GET("/download/status/:id", downloadHandler.Status)
			authed.GET("/download/file/:id", downloadHandler.GetFile)
			authed.DELETE("/download/cleanup/:id", downloadHandler.Cleanup)
			authed.GET("/quota", downloadHandler.QuotaInfo)

			authed.POST("/audio/upload", audioHandler.Upload)
			authed.POST("/audio/process", audioHandler.Process)
			authed.GET("/audio/status/:id", audioHandler.Status)
			authed.GET("/audio/download/:id", audioHandler.GetFile)
			authed.DELETE("/audio/cleanup/:id", audioHandler.Cleanup)
			authed.DELETE("/audio/upload/:id", audioHandler.DeleteUpload)
		}

		// Admin (shares the /auth prefix with the public login routes)
		admin := api.Group("/auth")
		admin.Use(middleware.AuthRequired(authManager), middleware.RequireRole(auth.RoleAdmin))
		{
			admin.POST("/users", authHandler.CreateUser)
			admin.GET("/users", authHandler.ListUsers)
			admin.DELETE("/users/:username", authHandler.DeleteUser)
			admin.POST("/reset-password", authHandler.ResetPassword)
			admin.POST("/update-username", authHandler.UpdateUsername)
			admin.DELETE("/sessions/:username", authHandler.DeleteUserSessions)
			admin.GET("/sessions", authHandler.ListSessions)
			admin.POST("/cleanup-sessions", authHandler.CleanupSessions)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Logger.Info("Server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server stopped")
}
