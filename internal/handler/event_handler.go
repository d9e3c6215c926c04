package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/models"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, actorID string, req *dto.UpsertEventRequest) (*models.Event, error)
	Update(ctx context.Context, id string, req *dto.UpsertEventRequest) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, upcomingOnly bool) ([]models.Event, error)
	CheckIn(ctx context.Context, actorID string, req *dto.CheckInRequest) (*models.EventAttendance, error)
	Attendance(ctx context.Context, eventID string) ([]models.EventAttendance, error)
	ExportAttendance(ctx context.Context, eventID string) (string, time.Time, error)
}

// EventHandler exposes event and check-in endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs the handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// Create godoc
// @Summary Register an event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.UpsertEventRequest true "Event details"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	event, err := h.service.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, event, nil)
}

// Update godoc
// @Summary Update an event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.UpsertEventRequest true "Event details"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpsertEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	event, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Get godoc
// @Summary Get one event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param upcoming query bool false "Only events that have not ended"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	upcomingOnly := false
	if raw := c.Query("upcoming"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			upcomingOnly = parsed
		}
	}
	events, err := h.service.List(c.Request.Context(), upcomingOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// CheckIn godoc
// @Summary Record a QR check-in scan
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CheckInRequest true "Scan details"
// @Success 201 {object} response.Envelope
// @Router /events/check-in [post]
func (h *EventHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid check-in payload"))
		return
	}
	attendance, err := h.service.CheckIn(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, attendance, nil)
}

// Attendance godoc
// @Summary List check-ins for an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/attendance [get]
func (h *EventHandler) Attendance(c *gin.Context) {
	attendance, err := h.service.Attendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attendance, nil)
}

// ExportAttendance godoc
// @Summary Export an event's attendance as CSV
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/attendance/export [post]
func (h *EventHandler) ExportAttendance(c *gin.Context) {
	token, expiresAt, err := h.service.ExportAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ExportLink{
		URL:       "/api/v1/exports/" + token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil)
}
