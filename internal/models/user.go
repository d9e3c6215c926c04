package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin      UserRole = "SUPERADMIN"
	RoleSSGAdmin        UserRole = "SSG_ADMIN"
	RoleDepartmentAdmin UserRole = "DEPARTMENT_ADMIN"
	RoleClubAdmin       UserRole = "CLUB_ADMIN"
	RoleOIC             UserRole = "OIC"
	RoleStudent         UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"fullName"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID *string    `db:"department_id" json:"departmentId,omitempty"`
	ClubID       *string    `db:"club_id" json:"clubId,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// DirectoryEntry is the read-only directory view used for display-name
// snapshotting across the clearance and messaging engines.
type DirectoryEntry struct {
	ID           string   `db:"id" json:"id"`
	FullName     string   `db:"full_name" json:"fullName"`
	Email        string   `db:"email" json:"email"`
	Role         UserRole `db:"role" json:"role"`
	DepartmentID *string  `db:"department_id" json:"departmentId,omitempty"`
	ClubID       *string  `db:"club_id" json:"clubId,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role         *UserRole
	DepartmentID string
	ClubID       string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
