package models

import "time"

// Club represents a student club or organization.
type Club struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	DepartmentID *string   `db:"department_id" json:"departmentId,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// ClubMembership ties a student to a club and tracks accumulated points.
type ClubMembership struct {
	ID        string    `db:"id" json:"id"`
	ClubID    string    `db:"club_id" json:"clubId"`
	StudentID string    `db:"student_id" json:"studentId"`
	Points    int       `db:"points" json:"points"`
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`
}

// PointAdjustment records a manual change to a member's points.
type PointAdjustment struct {
	ID         string    `db:"id" json:"id"`
	ClubID     string    `db:"club_id" json:"clubId"`
	StudentID  string    `db:"student_id" json:"studentId"`
	Delta      int       `db:"delta" json:"delta"`
	Reason     string    `db:"reason" json:"reason"`
	AdjustedBy string    `db:"adjusted_by" json:"adjustedBy"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
