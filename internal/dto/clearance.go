package dto

import "github.com/campusconnect/campusconnect-api/internal/models"

// DecideStageRequest captures an approver's decision on a single stage.
type DecideStageRequest struct {
	Stage  models.ClearanceStage `json:"stage" validate:"required,oneof=club department ssg"`
	Status models.StageStatus    `json:"status" validate:"required,oneof=approved rejected"`
	Notes  string                `json:"notes"`
}

// ClearanceQuery mirrors supported listing filters.
type ClearanceQuery struct {
	Overall   []models.OverallStatus
	StudentID string
	Limit     int
	Offset    int
}

// ExportLink is returned by export endpoints; the URL embeds a signed token.
type ExportLink struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}
