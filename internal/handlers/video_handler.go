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

type VideoHandler struct {
	BaseHandler
	videoService services.VideoTrackingService
	validator    *validator.Validator
}

func NewVideoHandler(videoService services.VideoTrackingService, validator *validator.Validator, logger utils.Logger) *VideoHandler {
	return &VideoHandler{
		BaseHandler:  NewBaseHandler(logger),
		videoService: videoService,
		validator:    validator,
	}
}

// TrackWatchEvent records a start, progress or end event against a
// watch session
// @Summary Track watch event
// @Tags videos
// @Accept json
// @Produce json
// @Param event body services.WatchEventRequest true "Watch event"
// @Success 200 {object} services.WatchSessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /videos/watch [post]
func (h *VideoHandler) TrackWatchEvent(c *gin.Context) {
	var req services.WatchEventRequest
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

	session, err := h.videoService.TrackEvent(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	monitoring.WatchEvents.WithLabelValues(string(req.EventType)).Inc()
	c.JSON(http.StatusOK, session)
}

func (h *VideoHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrWatchSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Watch session not found",
		})
	default:
		h.logger.Error("Unhandled video service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
