package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/services"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/utils"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

type AnalyticsHandler struct {
	BaseHandler
	analyticsService services.AnalyticsService
	validator        *validator.Validator
}

func NewAnalyticsHandler(analyticsService services.AnalyticsService, validator *validator.Validator, logger utils.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		BaseHandler:      NewBaseHandler(logger),
		analyticsService: analyticsService,
		validator:        validator,
	}
}

// GetOverview serves the platform-wide watch summary
// @Summary Watch overview
// @Tags analytics
// @Produce json
// @Success 200 {object} services.WatchOverviewResponse
// @Router /analytics/videos/overview [get]
func (h *AnalyticsHandler) GetOverview(c *gin.Context) {
	overview, err := h.analyticsService.Overview(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// ListQuestionRollups serves per-question engagement rollups
// @Summary Question rollups
// @Tags analytics
// @Produce json
// @Success 200 {array} repositories.QuestionWatchData
// @Router /analytics/videos/questions [get]
func (h *AnalyticsHandler) ListQuestionRollups(c *gin.Context) {
	rollups, err := h.analyticsService.QuestionRollups(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, rollups)
}

// GetQuestionDetail serves one question's rollup with its sessions
// @Summary Question watch detail
// @Tags analytics
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} services.QuestionWatchDetailResponse
// @Router /analytics/videos/questions/{id} [get]
func (h *AnalyticsHandler) GetQuestionDetail(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	detail, err := h.analyticsService.QuestionDetail(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// ListStudentRollups serves per-student engagement rollups
// @Summary Student rollups
// @Tags analytics
// @Produce json
// @Success 200 {array} repositories.StudentWatchData
// @Router /analytics/videos/students [get]
func (h *AnalyticsHandler) ListStudentRollups(c *gin.Context) {
	rollups, err := h.analyticsService.StudentRollups(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, rollups)
}

// GetStudentDetail serves one student's rollup with their sessions
// @Summary Student watch detail
// @Tags analytics
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} services.StudentWatchDetailResponse
// @Router /analytics/videos/students/{id} [get]
func (h *AnalyticsHandler) GetStudentDetail(c *gin.Context) {
	studentID := c.Param("id")
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid id parameter",
		})
		return
	}

	detail, err := h.analyticsService.StudentDetail(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// ExportWatchLog streams the full watch log as csv or xlsx
// @Summary Export watch log
// @Tags analytics
// @Produce octet-stream
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Router /analytics/videos/export [get]
func (h *AnalyticsHandler) ExportWatchLog(c *gin.Context) {
	format := c.DefaultQuery("format", services.ExportFormatCSV)

	payload, contentType, err := h.analyticsService.ExportWatchLog(c.Request.Context(), format)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("watch-log-%s.%s", time.Now().Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// GetTimeSeries serves bucketed watch activity with growth
// @Summary Watch time series
// @Tags analytics
// @Produce json
// @Param granularity query string false "day, week, month or year" default(day)
// @Success 200 {object} services.WatchSeriesResponse
// @Failure 400 {object} ErrorResponse
// @Router /analytics/videos/timeseries [get]
func (h *AnalyticsHandler) GetTimeSeries(c *gin.Context) {
	granularity := c.DefaultQuery("granularity", "day")

	series, err := h.analyticsService.TimeSeries(c.Request.Context(), granularity)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, series)
}

// PreviewRetention reports what a retention run would delete without
// deleting anything
// @Summary Preview retention
// @Tags analytics
// @Accept json
// @Produce json
// @Param selection body validator.RetentionRequest true "Retention selection"
// @Success 200 {object} services.RetentionPreviewResponse
// @Failure 400 {object} ErrorResponse
// @Router /analytics/videos/retention/preview [post]
func (h *AnalyticsHandler) PreviewRetention(c *gin.Context) {
	var req validator.RetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	var preview *services.RetentionPreviewResponse
	var err error
	if req.OlderThanDays != nil {
		preview, err = h.analyticsService.PreviewByAge(c.Request.Context(), *req.OlderThanDays)
	} else {
		preview, err = h.analyticsService.PreviewByRange(c.Request.Context(), req.StartDate, req.EndDate)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// DeleteRetention deletes the selected watch data; requires confirm
// @Summary Run retention delete
// @Tags analytics
// @Accept json
// @Produce json
// @Param selection body validator.RetentionRequest true "Retention selection"
// @Success 200 {object} services.RetentionResultResponse
// @Failure 400 {object} ErrorResponse
// @Router /analytics/videos/retention/delete [post]
func (h *AnalyticsHandler) DeleteRetention(c *gin.Context) {
	var req validator.RetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	var result *services.RetentionResultResponse
	var err error
	if req.OlderThanDays != nil {
		result, err = h.analyticsService.DeleteByAge(c.Request.Context(), *req.OlderThanDays, req.Confirm)
	} else {
		result, err = h.analyticsService.DeleteByRange(c.Request.Context(), req.StartDate, req.EndDate, req.Confirm)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AnalyticsHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	h.logger.Error("Unhandled analytics service error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
	})
}
