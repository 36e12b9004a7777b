package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bachhavrupali06/mcq-app-sub001/internal/utils"
)

// ErrorResponse is the envelope for all error payloads.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps payloads that have no natural top-level shape.
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the shared helpers every handler embeds.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// parseIDParam parses a positive numeric path parameter. On failure it
// writes the 400 response itself and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
			Details: raw,
		})
		return 0
	}
	return uint(id)
}

// LogRequest logs with the request-scoped logger when one is present.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.FromContext(c.Request.Context(), h.logger).Info(msg, args...)
}

// currentUserID pulls the authenticated user id from the context. On
// failure it writes the 401 response itself and returns "".
func (h *BaseHandler) currentUserID(c *gin.Context) string {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return ""
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return ""
	}
	return id
}
