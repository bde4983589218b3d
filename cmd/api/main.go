package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panodent/pano-gateway/internal/api"
	"github.com/panodent/pano-gateway/internal/api/middleware"
	"github.com/panodent/pano-gateway/internal/config"
	"github.com/panodent/pano-gateway/internal/logger"
	"github.com/panodent/pano-gateway/internal/repository"
	"github.com/panodent/pano-gateway/internal/runpod"
	"github.com/panodent/pano-gateway/internal/service"
	"github.com/panodent/pano-gateway/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.GetDefault().WithError(err).Fatal("Failed to load config")
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Log.Environment,
		LogFile:     cfg.Log.File,
		LogFileOnly: cfg.Log.FileOnly,
		ServiceName: "pano-gateway",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize job registry database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	jobRepo := repository.NewJobRepository(db)

	// Initialize artifact storage (supports MinIO, R2, S3)
	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	ctx := context.Background()
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	keys := storage.NewKeys(cfg.Storage.TempPrefix, cfg.Storage.PermanentPrefix)

	// Initialize remote inference client
	remote := runpod.NewClient(&runpod.Config{
		BaseURL:        cfg.RunPod.BaseURL,
		EndpointID:     cfg.RunPod.EndpointID,
		APIKey:         cfg.RunPod.APIKey,
		RequestTimeout: cfg.RunPod.RequestTimeout,
	})

	// Initialize services
	assembler := service.NewAssembler(objectStorage, keys, appLogger)
	tracker := service.NewTracker(remote, assembler, appLogger, service.TrackerConfig{
		PollInterval: cfg.Analysis.PollInterval,
		PollTimeout:  cfg.Analysis.PollTimeout,
		BackoffBase:  cfg.Analysis.BackoffBase,
		BackoffCap:   cfg.Analysis.BackoffCap,
	})
	analysisService := service.NewAnalysisService(tracker, jobRepo, objectStorage, keys, remote, appLogger, &service.AnalysisConfig{
		SyncWait:       cfg.Analysis.SyncWait,
		MaxUploadBytes: cfg.Analysis.MaxUploadBytes,
	})
	promoter := service.NewPromoter(jobRepo, objectStorage, keys, appLogger)

	// Setup router
	router := api.SetupRouter(analysisService, promoter, &api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
