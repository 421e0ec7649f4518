package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shuttlehq/service-reservation/internal/application"
	"github.com/shuttlehq/service-reservation/internal/auth"
	"github.com/shuttlehq/service-reservation/internal/middleware"
	"github.com/shuttlehq/service-reservation/internal/response"
)

// TripHandler handles HTTP requests for stops, trip templates and trip
// occurrences. Authoring endpoints are staff-only; availability queries are
// open to any authenticated user.
type TripHandler struct {
	service *application.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(service *application.TripService) *TripHandler {
	return &TripHandler{service: service}
}

// RegisterRoutes registers all trip routes on the given router group.
func (h *TripHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	staffRole := middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin)

	locations := r.Group("/api/v1/locations")
	locations.Use(authMW)
	{
		locations.POST("", staffRole, h.CreateLocation)
		locations.GET("", h.ListLocations)
	}

	templates := r.Group("/api/v1/templates")
	templates.Use(authMW)
	{
		templates.POST("", staffRole, h.CreateTemplate)
		templates.GET("", h.ListTemplates)
		templates.GET("/:id", h.GetTemplate)
		templates.GET("/:id/occurrences", h.ListOccurrences)
	}

	occurrences := r.Group("/api/v1/occurrences")
	occurrences.Use(authMW)
	{
		occurrences.POST("", staffRole, h.ScheduleOccurrence)
		occurrences.GET("/:id", h.GetOccurrence)
		occurrences.GET("/:id/availability", h.GetAvailability)
		occurrences.POST("/:id/availability/check", h.CheckAvailability)
		occurrences.POST("/:id/start", middleware.RequireRole(auth.RoleDriver, auth.RoleStaff, auth.RoleAdmin), h.StartOccurrence)
		occurrences.POST("/:id/complete", middleware.RequireRole(auth.RoleDriver, auth.RoleStaff, auth.RoleAdmin), h.CompleteOccurrence)
		occurrences.POST("/:id/cancel", staffRole, h.CancelOccurrence)
	}
}

// CreateLocation handles POST /api/v1/locations.
func (h *TripHandler) CreateLocation(c *gin.Context) {
	var req application.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateLocation(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListLocations handles GET /api/v1/locations.
func (h *TripHandler) ListLocations(c *gin.Context) {
	result, err := h.service.ListLocations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateTemplate handles POST /api/v1/templates.
func (h *TripHandler) CreateTemplate(c *gin.Context) {
	var req application.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListTemplates handles GET /api/v1/templates.
func (h *TripHandler) ListTemplates(c *gin.Context) {
	page, limit := parsePagination(c)
	result, err := h.service.ListTemplates(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetTemplate handles GET /api/v1/templates/:id.
func (h *TripHandler) GetTemplate(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template ID")
		return
	}

	result, err := h.service.GetTemplate(c.Request.Context(), templateID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListOccurrences handles GET /api/v1/templates/:id/occurrences.
func (h *TripHandler) ListOccurrences(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template ID")
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListOccurrences(c.Request.Context(), templateID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// ScheduleOccurrence handles POST /api/v1/occurrences.
func (h *TripHandler) ScheduleOccurrence(c *gin.Context) {
	var req application.ScheduleOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ScheduleOccurrence(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetOccurrence handles GET /api/v1/occurrences/:id.
func (h *TripHandler) GetOccurrence(c *gin.Context) {
	occurrenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence ID")
		return
	}

	result, err := h.service.GetOccurrence(c.Request.Context(), occurrenceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetAvailability handles GET /api/v1/occurrences/:id/availability.
func (h *TripHandler) GetAvailability(c *gin.Context) {
	occurrenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence ID")
		return
	}

	result, err := h.service.GetAvailability(c.Request.Context(), occurrenceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CheckAvailability handles POST /api/v1/occurrences/:id/availability/check.
func (h *TripHandler) CheckAvailability(c *gin.Context) {
	occurrenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence ID")
		return
	}

	var req application.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CheckAvailability(c.Request.Context(), occurrenceID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// StartOccurrence handles POST /api/v1/occurrences/:id/start.
func (h *TripHandler) StartOccurrence(c *gin.Context) {
	occurrenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence ID")
		return
	}

	result, err := h.service.StartOccurrence(c.Request.Context(), occurrenceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CompleteOccurrence handles POST /api/v1/occurrences/:id/complete.
func (h *TripHandler) CompleteOccurrence(c *gin.Context) {
	occurrenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence ID")
		return
	}

	result, err := h.service.CompleteOccurrence(c.Request.Context(), occurrenceID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelOccurrence handles POST /api/v1/occurrences/:id/cancel.
func (h *TripHandler) CancelOccurrence(c *gin.Context) {
	occurrenceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid occurrence ID")
		return
	}

	actorID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.CancelOccurrence(c.Request.Context(), occurrenceID, actorID, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
