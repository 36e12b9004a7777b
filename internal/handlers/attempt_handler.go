package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/services"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/utils"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
	"github.com/bachhavrupali06/mcq-app-sub001/pkg/monitoring"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(attemptService services.AttemptService, validator *validator.Validator, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// GetExamForAttempt serves the exam paper for a student who has not
// attempted it yet
// @Summary Get exam for attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamAttemptView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id}/attempt [get]
func (h *AttemptHandler) GetExamForAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	view, err := h.attemptService.GetExamForAttempt(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitExam scores and records the student's single attempt
// @Summary Submit exam
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param answers body services.SubmitExamRequest true "Submitted answers"
// @Success 201 {object} services.SubmitExamResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id}/submit [post]
func (h *AttemptHandler) SubmitExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SubmitExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), id, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	monitoring.ExamSubmissions.Inc()
	c.JSON(http.StatusCreated, result)
}

// GetResult serves one result with its recomputed breakdown
// @Summary Get result
// @Tags attempts
// @Produce json
// @Param id path uint true "Result ID"
// @Success 200 {object} services.ResultDetailResponse
// @Failure 404 {object} ErrorResponse
// @Router /results/{id} [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListHistory lists the student's attempts newest first
// @Summary List attempt history
// @Tags attempts
// @Produce json
// @Success 200 {array} services.HistoryItem
// @Router /results [get]
func (h *AttemptHandler) ListHistory(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	history, err := h.attemptService.ListHistory(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var alreadyAttempted *services.AlreadyAttemptedError
	if errors.As(err, &alreadyAttempted) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam already attempted",
			Details: map[string]interface{}{
				"result_id": alreadyAttempted.ResultID,
				"score":     alreadyAttempted.Score,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrResultNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Result not found",
		})
	case errors.Is(err, services.ErrExamHasNoQuestions):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Exam has no questions",
		})
	default:
		h.logger.Error("Unhandled attempt service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
