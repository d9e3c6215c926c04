package dto

import "github.com/campusconnect/campusconnect-api/internal/models"

// CreateUserRequest defines payload for provisioning a new account.
type CreateUserRequest struct {
	Email        string          `json:"email" validate:"required,email"`
	Password     string          `json:"password" validate:"required,min=6"`
	FullName     string          `json:"fullName" validate:"required"`
	Role         models.UserRole `json:"role" validate:"required"`
	DepartmentID string          `json:"departmentId"`
	ClubID       string          `json:"clubId"`
}

// UpdateUserRequest defines payload for modifying an account.
type UpdateUserRequest struct {
	Email        string           `json:"email" validate:"required,email"`
	FullName     string           `json:"fullName" validate:"required"`
	Role         *models.UserRole `json:"role"`
	DepartmentID *string          `json:"departmentId"`
	ClubID       *string          `json:"clubId"`
	Active       *bool            `json:"active"`
}
