package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/config"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/events"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/handlers"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/llm"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories/casdoor"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories/postgres"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/services"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/utils"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
	"github.com/bachhavrupali06/mcq-app-sub001/pkg"
	"github.com/bachhavrupali06/mcq-app-sub001/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to initialize Redis: %v", err)
		}
	}

	// Initialize repositories
	repoConfig := postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Certificate,
			OrganizationName: cfg.Casdoor.OrganizationName,
			ApplicationName:  cfg.Casdoor.ApplicationName,
		},
	}
	repoManager := postgres.NewRepositoryManager(repoConfig)
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	// Initialize event publisher (Kafka when brokers are configured,
	// in-process otherwise)
	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewKafkaPublisher(cfg.KafkaBrokers, slogLogger)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka publisher: %v", err)
		}
	} else {
		publisher = events.NewGoChannelPublisher(slogLogger)
	}

	// Initialize explanation provider client
	llmClient := llm.NewClient(llm.Config{
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})

	// Initialize validator
	validator := validator.New()

	// Initialize metrics
	monitoring.Init()

	// Initialize services
	serviceManager := services.NewServiceManager(repoManager.GetRepository(), publisher, llmClient, slogLogger, validator)
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(serviceManager, validator, logger, cfg.Casdoor, repoManager.GetRepository().User())

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Setup middleware
	handlers.SetupMiddleware(router, logger)

	// Setup routes
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Shutdown services (closes the publisher and repositories)
	if err := serviceManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown services: %v", err)
	}

	logger.Info("Server exited")
}
