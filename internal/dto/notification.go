package dto

import "github.com/campusconnect/campusconnect-api/internal/models"

// DraftNotificationRequest asks the drafting collaborator for a message body.
type DraftNotificationRequest struct {
	Topic    string                      `json:"topic" validate:"required"`
	Tone     string                      `json:"tone"`
	Audience models.NotificationAudience `json:"audience" validate:"required"`
}

// DraftNotificationResponse returns the generated draft.
type DraftNotificationResponse struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreateNotificationRequest stores a notification (draft or ready to publish).
type CreateNotificationRequest struct {
	Title    string                      `json:"title" validate:"required"`
	Body     string                      `json:"body" validate:"required"`
	Audience models.NotificationAudience `json:"audience" validate:"required"`
	TargetID *string                     `json:"targetId"`
}
