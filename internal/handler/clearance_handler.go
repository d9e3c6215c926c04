package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/internal/service"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/response"
)

type clearanceService interface {
	Initiate(ctx context.Context, claims *models.JWTClaims) (*models.ClearanceRequest, error)
	DecideStage(ctx context.Context, claims *models.JWTClaims, requestID string, decision service.Decision) (*models.ClearanceRequest, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.ClearanceRequest, error)
	List(ctx context.Context, claims *models.JWTClaims, filter models.ClearanceFilter) ([]models.ClearanceRequest, error)
	Summary(ctx context.Context) (*models.ClearanceSummary, error)
	ExportRoster(ctx context.Context, claims *models.JWTClaims, filter models.ClearanceFilter) (string, time.Time, error)
	ExportCertificate(ctx context.Context, claims *models.JWTClaims, requestID string) (string, time.Time, error)
}

// ClearanceHandler exposes REST endpoints for the clearance workflow.
type ClearanceHandler struct {
	service clearanceService
}

// NewClearanceHandler constructs the handler.
func NewClearanceHandler(service clearanceService) *ClearanceHandler {
	return &ClearanceHandler{service: service}
}

// Initiate godoc
// @Summary Open a clearance request for the calling student
// @Tags Clearance
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /clearance [post]
func (h *ClearanceHandler) Initiate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Initiate(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, request, nil)
}

// Decide godoc
// @Summary Apply an approver decision to one stage
// @Tags Clearance
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecideStageRequest true "Stage decision"
// @Success 200 {object} response.Envelope
// @Router /clearance/{id}/decision [post]
func (h *ClearanceHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecideStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	request, err := h.service.DecideStage(c.Request.Context(), claims, c.Param("id"), service.Decision{
		Stage:  req.Stage,
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Get godoc
// @Summary Get one clearance request
// @Tags Clearance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/{id} [get]
func (h *ClearanceHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List clearance requests visible to the caller
// @Tags Clearance
// @Produce json
// @Param overall query string false "Comma separated overall statuses"
// @Param student query string false "Student ID"
// @Success 200 {object} response.Envelope
// @Router /clearance [get]
func (h *ClearanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.service.List(c.Request.Context(), claims, filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Summary godoc
// @Summary Aggregate request counts by overall status
// @Tags Clearance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clearance/summary [get]
func (h *ClearanceHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ExportRoster godoc
// @Summary Export the visible request list as CSV
// @Tags Clearance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clearance/export [post]
func (h *ClearanceHandler) ExportRoster(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token, expiresAt, err := h.service.ExportRoster(c.Request.Context(), claims, filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ExportLink{
		URL:       "/api/v1/exports/" + token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil)
}

// ExportCertificate godoc
// @Summary Render a clearance certificate PDF for an approved request
// @Tags Clearance
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /clearance/{id}/certificate [post]
func (h *ClearanceHandler) ExportCertificate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token, expiresAt, err := h.service.ExportCertificate(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ExportLink{
		URL:       "/api/v1/exports/" + token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil)
}

func filterFromQuery(c *gin.Context) models.ClearanceFilter {
	filter := models.ClearanceFilter{
		StudentID: strings.TrimSpace(c.Query("student")),
	}
	if raw := c.Query("overall"); raw != "" {
		parts := strings.Split(raw, ",")
		statuses := make([]models.OverallStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			statuses = append(statuses, models.OverallStatus(part))
		}
		filter.Overall = statuses
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}
	return filter
}
