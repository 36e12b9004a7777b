package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/events"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/llm"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

// ServiceManager owns the lifecycle of all domain services.
type ServiceManager interface {
	Exam() ExamService
	Attempt() AttemptService
	VideoTracking() VideoTrackingService
	Analytics() AnalyticsService
	Explanation() ExplanationService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// serviceManager implements ServiceManager
type serviceManager struct {
	// Dependencies
	repo      repositories.Repository
	publisher events.Publisher
	llmClient llm.Client
	logger    *slog.Logger
	validator *validator.Validator

	// Service instances
	examService          ExamService
	attemptService       AttemptService
	videoTrackingService VideoTrackingService
	analyticsService     AnalyticsService
	explanationService   ExplanationService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(repo repositories.Repository, publisher events.Publisher, llmClient llm.Client, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	return &serviceManager{
		repo:      repo,
		publisher: publisher,
		llmClient: llmClient,
		logger:    logger,
		validator: validator,
	}
}

// Initialize wires up all services and verifies their dependencies.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.examService = NewExamService(sm.repo, sm.logger, sm.validator)
	sm.attemptService = NewAttemptService(sm.repo, sm.publisher, sm.logger, sm.validator)
	sm.videoTrackingService = NewVideoTrackingService(sm.repo, sm.publisher, sm.logger, sm.validator)
	sm.analyticsService = NewAnalyticsService(sm.repo, sm.logger)
	sm.explanationService = NewExplanationService(sm.repo, sm.llmClient, sm.logger)

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.examService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) VideoTracking() VideoTrackingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.videoTrackingService
}

func (sm *serviceManager) Analytics() AnalyticsService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.analyticsService
}

func (sm *serviceManager) Explanation() ExplanationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.explanationService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}
	if err := sm.repo.Close(); err != nil {
		sm.logger.Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
