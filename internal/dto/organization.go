package dto

// UpsertDepartmentRequest defines payload for creating/updating a department.
type UpsertDepartmentRequest struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required"`
}

// UpsertClubRequest defines payload for creating/updating a club.
type UpsertClubRequest struct {
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	DepartmentID *string `json:"departmentId"`
}

// JoinClubRequest adds a student member to a club.
type JoinClubRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}

// AdjustPointsRequest changes a member's point balance by a signed delta.
type AdjustPointsRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	Delta     int    `json:"delta" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}
