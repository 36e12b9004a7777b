package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/services"
	"github.com/bachhavrupali06/mcq-app-sub001/internal/utils"
)

type QuestionHandler struct {
	BaseHandler
	explanationService services.ExplanationService
}

func NewQuestionHandler(explanationService services.ExplanationService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:        NewBaseHandler(logger),
		explanationService: explanationService,
	}
}

// GenerateExplanation generates and stores an explanation for the
// question's correct answer
// @Summary Generate question explanation
// @Tags questions
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} services.QuestionExplanationResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /questions/{id}/explanation [post]
func (h *QuestionHandler) GenerateExplanation(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.currentUserID(c)
	if userID == "" {
		return
	}

	explanation, err := h.explanationService.GenerateExplanation(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, explanation)
}

func (h *QuestionHandler) handleServiceError(c *gin.Context, err error) {
	var upstreamError *services.UpstreamError
	if errors.As(err, &upstreamError) {
		status := http.StatusBadGateway
		message := "Explanation provider failed"
		if upstreamError.Timeout {
			status = http.StatusGatewayTimeout
			message = "Explanation provider timed out"
		}
		c.JSON(status, ErrorResponse{
			Message: message,
			Details: upstreamError.Message,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	default:
		h.logger.Error("Unhandled explanation service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
