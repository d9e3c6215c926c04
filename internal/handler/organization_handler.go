package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/models"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/response"
)

type organizationService interface {
	CreateDepartment(ctx context.Context, req *dto.UpsertDepartmentRequest) (*models.Department, error)
	UpdateDepartment(ctx context.Context, id string, req *dto.UpsertDepartmentRequest) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	CreateClub(ctx context.Context, req *dto.UpsertClubRequest) (*models.Club, error)
	UpdateClub(ctx context.Context, id string, req *dto.UpsertClubRequest) (*models.Club, error)
	ListClubs(ctx context.Context) ([]models.Club, error)
	JoinClub(ctx context.Context, clubID, studentID string) error
	ClubMembers(ctx context.Context, clubID string) ([]models.ClubMembership, error)
	AdjustPoints(ctx context.Context, actorID, clubID string, req *dto.AdjustPointsRequest) (int, error)
	PointHistory(ctx context.Context, clubID, studentID string) ([]models.PointAdjustment, error)
}

// OrganizationHandler exposes department and club endpoints.
type OrganizationHandler struct {
	service organizationService
}

// NewOrganizationHandler constructs the handler.
func NewOrganizationHandler(service organizationService) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// CreateDepartment godoc
// @Summary Register a department
// @Tags Organizations
// @Accept json
// @Produce json
// @Param payload body dto.UpsertDepartmentRequest true "Department details"
// @Success 201 {object} response.Envelope
// @Router /departments [post]
func (h *OrganizationHandler) CreateDepartment(c *gin.Context) {
	var req dto.UpsertDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid department payload"))
		return
	}
	department, err := h.service.CreateDepartment(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, department, nil)
}

// UpdateDepartment godoc
// @Summary Update a department
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param payload body dto.UpsertDepartmentRequest true "Department details"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [put]
func (h *OrganizationHandler) UpdateDepartment(c *gin.Context) {
	var req dto.UpsertDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid department payload"))
		return
	}
	department, err := h.service.UpdateDepartment(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil)
}

// ListDepartments godoc
// @Summary List active departments
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *OrganizationHandler) ListDepartments(c *gin.Context) {
	departments, err := h.service.ListDepartments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// CreateClub godoc
// @Summary Register a club
// @Tags Organizations
// @Accept json
// @Produce json
// @Param payload body dto.UpsertClubRequest true "Club details"
// @Success 201 {object} response.Envelope
// @Router /clubs [post]
func (h *OrganizationHandler) CreateClub(c *gin.Context) {
	var req dto.UpsertClubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid club payload"))
		return
	}
	club, err := h.service.CreateClub(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, club, nil)
}

// UpdateClub godoc
// @Summary Update a club
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Club ID"
// @Param payload body dto.UpsertClubRequest true "Club details"
// @Success 200 {object} response.Envelope
// @Router /clubs/{id} [put]
func (h *OrganizationHandler) UpdateClub(c *gin.Context) {
	var req dto.UpsertClubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid club payload"))
		return
	}
	club, err := h.service.UpdateClub(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, club, nil)
}

// ListClubs godoc
// @Summary List active clubs
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clubs [get]
func (h *OrganizationHandler) ListClubs(c *gin.Context) {
	clubs, err := h.service.ListClubs(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clubs, nil)
}

// JoinClub godoc
// @Summary Enroll a student into a club
// @Tags Organizations
// @Accept json
// @Param id path string true "Club ID"
// @Param payload body dto.JoinClubRequest true "Student"
// @Success 204
// @Router /clubs/{id}/members [post]
func (h *OrganizationHandler) JoinClub(c *gin.Context) {
	var req dto.JoinClubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid membership payload"))
		return
	}
	if err := h.service.JoinClub(c.Request.Context(), c.Param("id"), req.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClubMembers godoc
// @Summary List a club's members by points
// @Tags Organizations
// @Produce json
// @Param id path string true "Club ID"
// @Success 200 {object} response.Envelope
// @Router /clubs/{id}/members [get]
func (h *OrganizationHandler) ClubMembers(c *gin.Context) {
	members, err := h.service.ClubMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// AdjustPoints godoc
// @Summary Adjust a member's point balance
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Club ID"
// @Param payload body dto.AdjustPointsRequest true "Adjustment"
// @Success 200 {object} response.Envelope
// @Router /clubs/{id}/points [post]
func (h *OrganizationHandler) AdjustPoints(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid points payload"))
		return
	}
	balance, err := h.service.AdjustPoints(c.Request.Context(), claims.UserID, c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"studentId": req.StudentID, "points": balance}, nil)
}

// PointHistory godoc
// @Summary List a member's point adjustments
// @Tags Organizations
// @Produce json
// @Param id path string true "Club ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /clubs/{id}/points/{studentId} [get]
func (h *OrganizationHandler) PointHistory(c *gin.Context) {
	history, err := h.service.PointHistory(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
