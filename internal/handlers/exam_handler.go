package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/services"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/utils"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/validator"
)

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
	validator   *validator.Validator
}

func NewExamHandler(examService services.ExamService, validator *validator.Validator, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
		validator:   validator,
	}
}

// CreateExam creates a new exam with its question assignments
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.CreateExamRequest true "Exam data"
// @Success 201 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req services.CreateExamRequest
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

	exam, err := h.examService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// UpdateExam replaces an exam's fields and, when question ids are
// present, its entire question set
// @Summary Update exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param exam body services.UpdateExamRequest true "Exam data"
// @Success 200 {object} services.ExamResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateExamRequest
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

	exam, err := h.examService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// GetExam retrieves an exam with its ordered question ids
// @Summary Get exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamDetailResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting exam", "exam_id", id)

	exam, err := h.examService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// DeleteExam removes an exam with its assignments and results
// @Summary Delete exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deleted"})
}

// ListExams lists all exams with attempt and question counts
// @Summary List exams
// @Tags exams
// @Produce json
// @Success 200 {array} services.AdminExamRow
// @Router /exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.examService.ListForAdmin(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

// ListAvailableExams lists non-draft exams annotated with the calling
// student's attempt state
// @Summary List available exams
// @Tags exams
// @Produce json
// @Success 200 {array} services.StudentExamRow
// @Router /exams/available [get]
func (h *ExamHandler) ListAvailableExams(c *gin.Context) {
	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	exams, err := h.examService.ListForStudent(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}

func (h *ExamHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
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

	var preconditionError *services.PreconditionError
	if errors.As(err, &preconditionError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Exam cannot be activated",
			Details: preconditionError.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	default:
		h.logger.Error("Unhandled exam service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
