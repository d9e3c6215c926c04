package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/models"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
)

type departmentStore interface {
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	GetByID(ctx context.Context, id string) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
	Deactivate(ctx context.Context, id string) error
}

type clubStore interface {
	Create(ctx context.Context, club *models.Club) error
	Update(ctx context.Context, club *models.Club) error
	GetByID(ctx context.Context, id string) (*models.Club, error)
	List(ctx context.Context) ([]models.Club, error)
	AddMember(ctx context.Context, membership *models.ClubMembership) error
	Members(ctx context.Context, clubID string) ([]models.ClubMembership, error)
	GetMembership(ctx context.Context, clubID, studentID string) (*models.ClubMembership, error)
	AdjustPoints(ctx context.Context, adjustment *models.PointAdjustment) (int, error)
	PointHistory(ctx context.Context, clubID, studentID string) ([]models.PointAdjustment, error)
}

type orgAuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// OrganizationService manages departments, clubs, membership, and points.
type OrganizationService struct {
	departments departmentStore
	clubs       clubStore
	audits      orgAuditStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewOrganizationService constructs the service.
func NewOrganizationService(departments departmentStore, clubs clubStore, audits orgAuditStore, validate *validator.Validate, logger *zap.Logger) *OrganizationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizationService{departments: departments, clubs: clubs, audits: audits, validator: validate, logger: logger}
}

// GetDepartmentName resolves a department's display name for snapshotting.
func (s *OrganizationService) GetDepartmentName(ctx context.Context, id string) (string, error) {
	department, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return department.Name, nil
}

// GetClubName resolves a club's display name for snapshotting.
func (s *OrganizationService) GetClubName(ctx context.Context, id string) (string, error) {
	club, err := s.clubs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return club.Name, nil
}

// CreateDepartment registers a new department.
func (s *OrganizationService) CreateDepartment(ctx context.Context, req *dto.UpsertDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	department := &models.Department{Name: req.Name, Code: req.Code, Active: true}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return department, nil
}

// UpdateDepartment modifies a department.
func (s *OrganizationService) UpdateDepartment(ctx context.Context, id string, req *dto.UpsertDepartmentRequest) (*models.Department, error) {
	department, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	department.Name = req.Name
	department.Code = req.Code
	if err := s.departments.Update(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return department, nil
}

// ListDepartments returns all active departments.
func (s *OrganizationService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// CreateClub registers a new club.
func (s *OrganizationService) CreateClub(ctx context.Context, req *dto.UpsertClubRequest) (*models.Club, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid club payload")
	}
	if req.DepartmentID != nil {
		if _, err := s.departments.GetByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "department does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department")
		}
	}
	club := &models.Club{Name: req.Name, Description: req.Description, DepartmentID: req.DepartmentID, Active: true}
	if err := s.clubs.Create(ctx, club); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create club")
	}
	return club, nil
}

// UpdateClub modifies a club.
func (s *OrganizationService) UpdateClub(ctx context.Context, id string, req *dto.UpsertClubRequest) (*models.Club, error) {
	club, err := s.clubs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "club not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load club")
	}
	club.Name = req.Name
	club.Description = req.Description
	club.DepartmentID = req.DepartmentID
	if err := s.clubs.Update(ctx, club); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update club")
	}
	return club, nil
}

// ListClubs returns all active clubs.
func (s *OrganizationService) ListClubs(ctx context.Context) ([]models.Club, error) {
	clubs, err := s.clubs.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clubs")
	}
	return clubs, nil
}

// JoinClub enrolls a student as a member.
func (s *OrganizationService) JoinClub(ctx context.Context, clubID, studentID string) error {
	if _, err := s.clubs.GetByID(ctx, clubID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "club not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load club")
	}
	membership := &models.ClubMembership{ClubID: clubID, StudentID: studentID}
	if err := s.clubs.AddMember(ctx, membership); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join club")
	}
	return nil
}

// ClubMembers lists a club's members by points, highest first.
func (s *OrganizationService) ClubMembers(ctx context.Context, clubID string) ([]models.ClubMembership, error) {
	members, err := s.clubs.Members(ctx, clubID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return members, nil
}

// AdjustPoints applies a signed delta to a member's balance and records who
// did it and why.
func (s *OrganizationService) AdjustPoints(ctx context.Context, actorID, clubID string, req *dto.AdjustPointsRequest) (int, error) {
	if req.Delta == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "delta cannot be zero")
	}

	adjustment := &models.PointAdjustment{
		ClubID:     clubID,
		StudentID:  req.StudentID,
		Delta:      req.Delta,
		Reason:     req.Reason,
		AdjustedBy: actorID,
	}
	balance, err := s.clubs.AdjustPoints(ctx, adjustment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "student is not a member of this club")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to adjust points")
	}

	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionPointsAdjust,
		Resource:   "club_membership",
		ResourceID: &adjustment.ID,
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to write audit log", "action", models.AuditActionPointsAdjust, "error", err)
	}
	return balance, nil
}

// PointHistory lists adjustments for a member, newest first.
func (s *OrganizationService) PointHistory(ctx context.Context, clubID, studentID string) ([]models.PointAdjustment, error) {
	history, err := s.clubs.PointHistory(ctx, clubID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load point history")
	}
	return history, nil
}
