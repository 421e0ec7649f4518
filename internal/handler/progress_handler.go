package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shuttlehq/service-reservation/internal/application"
	"github.com/shuttlehq/service-reservation/internal/auth"
	"github.com/shuttlehq/service-reservation/internal/middleware"
	"github.com/shuttlehq/service-reservation/internal/response"
)

// ProgressHandler handles driver-reported trip progress.
type ProgressHandler struct {
	service *application.ProgressService
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(service *application.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// RegisterRoutes registers progress routes on the given router group.
func (h *ProgressHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	driverRole := middleware.RequireRole(auth.RoleDriver, auth.RoleStaff, auth.RoleAdmin)

	occurrences := r.Group("/api/v1/occurrences")
	occurrences.Use(authMW)
	{
		occurrences.GET("/:id/progress", h.GetProgress)
		occurrences.POST("/:id/segments/:index/complete", driverRole, h.MarkSegmentComplete)
		occurrences.POST("/:id/segments/:index/eta", driverRole, h.RecordETA)
	}
}

// GetProgress handles GET /api/v1/occurrences/:id/progress.
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	occurrenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence ID")
		return
	}

	result, err := h.service.GetProgress(c.Request.Context(), occurrenceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// MarkSegmentComplete handles POST /api/v1/occurrences/:id/segments/:index/complete.
func (h *ProgressHandler) MarkSegmentComplete(c *gin.Context) {
	occurrenceID, orderIndex, ok := h.parseSegmentRef(c)
	if !ok {
		return
	}

	if err := h.service.MarkSegmentComplete(c.Request.Context(), occurrenceID, orderIndex); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"trip_occurrence_id": occurrenceID, "order_index": orderIndex, "completed": true})
}

// RecordETA handles POST /api/v1/occurrences/:id/segments/:index/eta.
func (h *ProgressHandler) RecordETA(c *gin.Context) {
	occurrenceID, orderIndex, ok := h.parseSegmentRef(c)
	if !ok {
		return
	}

	var req application.RecordETARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.RecordETA(c.Request.Context(), occurrenceID, orderIndex, req.ETA); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"trip_occurrence_id": occurrenceID, "order_index": orderIndex, "eta": req.ETA})
}

func (h *ProgressHandler) parseSegmentRef(c *gin.Context) (uuid.UUID, int, bool) {
	occurrenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence ID")
		return uuid.Nil, 0, false
	}

	orderIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil || orderIndex < 0 {
		response.BadRequest(c, "invalid segment index")
		return uuid.Nil, 0, false
	}

	return occurrenceID, orderIndex, true
}
