package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/config"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/models"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/repositories"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/services"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/utils"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
	"github.com/bachhavrupali06/mcq-app-sub001/pkg/monitoring"
)

type HandlerManager struct {
	examHandler      *ExamHandler
	attemptHandler   *AttemptHandler
	videoHandler     *VideoHandler
	analyticsHandler *AnalyticsHandler
	questionHandler  *QuestionHandler
	authMiddleware   *CasdoorAuthMiddleware
	serviceManager   services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		examHandler:      NewExamHandler(serviceManager.Exam(), validator, logger),
		attemptHandler:   NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		videoHandler:     NewVideoHandler(serviceManager.VideoTracking(), validator, logger),
		analyticsHandler: NewAnalyticsHandler(serviceManager.Analytics(), validator, logger),
		questionHandler:  NewQuestionHandler(serviceManager.Explanation(), logger),
		authMiddleware:   authMiddleware,
		serviceManager:   serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(monitoring.MetricsMiddleware())

	router.GET("/health", hm.healthCheck)
	router.GET("/metrics", monitoring.PrometheusHandler())

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Exam routes
		exams := v1.Group("/exams")
		{
			// Manage exams - Admins only
			exams.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.examHandler.CreateExam)
			exams.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.examHandler.UpdateExam)
			exams.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.examHandler.DeleteExam)
			exams.GET("", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.examHandler.ListExams)
			exams.GET("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.examHandler.GetExam)

			// Taking exams - Students
			exams.GET("/available", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.examHandler.ListAvailableExams)
			exams.GET("/:id/attempt", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.GetExamForAttempt)
			exams.POST("/:id/submit", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.SubmitExam)
		}

		// Result routes - Students view their own attempts
		results := v1.Group("/results")
		{
			results.GET("", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.ListHistory)
			results.GET("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.GetResult)
		}

		// Video tracking routes
		videos := v1.Group("/videos")
		{
			videos.POST("/watch", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.videoHandler.TrackWatchEvent)
		}

		// Analytics routes - Admins only
		analytics := v1.Group("/analytics/videos")
		analytics.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
		{
			analytics.GET("/overview", hm.analyticsHandler.GetOverview)
			analytics.GET("/questions", hm.analyticsHandler.ListQuestionRollups)
			analytics.GET("/questions/:id", hm.analyticsHandler.GetQuestionDetail)
			analytics.GET("/students", hm.analyticsHandler.ListStudentRollups)
			analytics.GET("/students/:id", hm.analyticsHandler.GetStudentDetail)
			analytics.GET("/export", hm.analyticsHandler.ExportWatchLog)
			analytics.GET("/timeseries", hm.analyticsHandler.GetTimeSeries)
			analytics.POST("/retention/preview", hm.analyticsHandler.PreviewRetention)
			analytics.POST("/retention/delete", hm.analyticsHandler.DeleteRetention)
		}

		// Question routes - Admins only
		questions := v1.Group("/questions")
		{
			questions.POST("/:id/explanation", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.questionHandler.GenerateExplanation)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
